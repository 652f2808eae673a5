package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the keyword file whenever it changes on disk, so a
// refreshed export takes effect without a restart. Blocks until ctx is
// cancelled.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create keyword watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and exporters often replace the file
	// rather than writing it in place.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch keyword dir: %w", err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}

			// Small delay so the write has finished.
			time.Sleep(100 * time.Millisecond)

			if err := s.Reload(); err != nil {
				fmt.Fprintf(os.Stderr, "keyword reload error: %v\n", err)
				continue
			}
			p, sec := s.Counts()
			fmt.Fprintf(os.Stderr, "keywords reloaded: %d primary, %d secondary\n", p, sec)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "keyword watcher error: %v\n", err)
		}
	}
}
