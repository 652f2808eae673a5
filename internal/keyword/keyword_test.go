package keyword

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seoradar/pkg/match"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AliasColumns(t *testing.T) {
	path := writeCSV(t, "Keyword,Search Volume\nbitcoin,90000\nwallet,40000\n")

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, match.Entry{Term: "bitcoin", Volume: 90000}, entries[0])
	assert.Equal(t, match.Entry{Term: "wallet", Volume: 40000}, entries[1])
}

func TestLoad_FallbackFirstColumn(t *testing.T) {
	path := writeCSV(t, "phrase,notes\nbitcoin,irrelevant\nwallet,whatever\n")

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bitcoin", entries[0].Term)
	assert.Zero(t, entries[0].Volume, "no volume column yields zero")
}

func TestLoad_VolumeCoercion(t *testing.T) {
	path := writeCSV(t, "keyword,volume\na,\"12,500\"\nb,nan\nc,\nd,99.9\ne,-5\n")

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, 12500, entries[0].Volume)
	assert.Equal(t, 0, entries[1].Volume)
	assert.Equal(t, 0, entries[2].Volume)
	assert.Equal(t, 99, entries[3].Volume)
	assert.Equal(t, 0, entries[4].Volume)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoad_NoDataRows(t *testing.T) {
	path := writeCSV(t, "keyword,volume\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func sourceWithTerms(t *testing.T, n int, secondaryPerRun int) *Source {
	t.Helper()
	b := "keyword,volume\n"
	for i := 0; i < n; i++ {
		b += fmt.Sprintf("term%02d,%d\n", i, 1000-i)
	}
	src := NewSource(writeCSV(t, b), match.Options{}, 10, secondaryPerRun)
	require.NoError(t, src.Reload())
	return src
}

func TestSource_Counts(t *testing.T) {
	src := sourceWithTerms(t, 25, 5)

	p, s := src.Counts()
	assert.Equal(t, 10, p)
	assert.Equal(t, 15, s)
}

func TestSource_SelectForCycle_RoundRobin(t *testing.T) {
	// 10 primary + 7 secondary, window of 3.
	src := sourceWithTerms(t, 17, 3)

	primary, sec1 := src.SelectForCycle()
	assert.Len(t, primary, 10)
	assert.Equal(t, []string{"term10", "term11", "term12"}, sec1)

	_, sec2 := src.SelectForCycle()
	assert.Equal(t, []string{"term13", "term14", "term15"}, sec2)

	_, sec3 := src.SelectForCycle()
	assert.Equal(t, []string{"term16", "term10", "term11"}, sec3,
		"cursor wraps so every term keeps getting searched")
}

func TestSource_SelectForCycle_SmallSecondaryTier(t *testing.T) {
	src := sourceWithTerms(t, 12, 20)

	for i := 0; i < 3; i++ {
		_, sec := src.SelectForCycle()
		assert.Equal(t, []string{"term10", "term11"}, sec,
			"a tier smaller than the window is returned whole")
	}
}

func TestSource_ReloadSwapsMatcher(t *testing.T) {
	path := writeCSV(t, "keyword,volume\nbitcoin,100\n")
	src := NewSource(path, match.Options{}, 10, 20)
	require.NoError(t, src.Reload())

	require.NoError(t, os.WriteFile(path, []byte("keyword,volume\nethereum,100\nwallet,50\n"), 0o644))
	require.NoError(t, src.Reload())

	assert.Equal(t, []string{"ethereum", "wallet"}, src.Matcher().PrimaryTerms())
}

func TestSource_BadReloadKeepsOldMatcher(t *testing.T) {
	path := writeCSV(t, "keyword,volume\nbitcoin,100\n")
	src := NewSource(path, match.Options{}, 10, 20)
	require.NoError(t, src.Reload())

	require.NoError(t, os.WriteFile(path, []byte("keyword,volume\n"), 0o644))
	assert.Error(t, src.Reload())
	assert.Equal(t, []string{"bitcoin"}, src.Matcher().PrimaryTerms(),
		"a failed reload must not clobber the working matcher")
}
