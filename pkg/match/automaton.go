package match

import "unicode/utf8"

// automaton is an Aho-Corasick multi-pattern matcher. It scans the text
// once regardless of how many keywords are compiled, instead of one
// containment pass per keyword.
type automaton struct {
	terms []string
	nodes []acNode
	// shortTerm marks patterns of three or fewer characters, which need
	// the word-boundary check on both sides of a hit.
	shortTerm []bool
}

type acNode struct {
	next    map[rune]int
	fail    int
	outputs []int // pattern indices ending at this node
}

func newAutomaton(ranked []string) *automaton {
	a := &automaton{
		terms:     ranked,
		nodes:     []acNode{{next: make(map[rune]int)}},
		shortTerm: make([]bool, len(ranked)),
	}

	for idx, term := range ranked {
		a.shortTerm[idx] = utf8.RuneCountInString(term) <= 3
		a.insert(term, idx)
	}
	a.buildFailLinks()
	return a
}

func (a *automaton) insert(term string, idx int) {
	cur := 0
	for _, r := range term {
		next, ok := a.nodes[cur].next[r]
		if !ok {
			a.nodes = append(a.nodes, acNode{next: make(map[rune]int)})
			next = len(a.nodes) - 1
			a.nodes[cur].next[r] = next
		}
		cur = next
	}
	a.nodes[cur].outputs = append(a.nodes[cur].outputs, idx)
}

// buildFailLinks wires failure transitions breadth-first and merges
// output sets so every suffix match surfaces at each node.
func (a *automaton) buildFailLinks() {
	queue := make([]int, 0, len(a.nodes))
	for _, child := range a.nodes[0].next {
		a.nodes[child].fail = 0
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for r, child := range a.nodes[cur].next {
			queue = append(queue, child)

			f := a.nodes[cur].fail
			for f != 0 {
				if _, ok := a.nodes[f].next[r]; ok {
					break
				}
				f = a.nodes[f].fail
			}
			if next, ok := a.nodes[f].next[r]; ok && next != child {
				a.nodes[child].fail = next
			} else {
				a.nodes[child].fail = 0
			}
			a.nodes[child].outputs = append(a.nodes[child].outputs, a.nodes[a.nodes[child].fail].outputs...)
		}
	}
}

// scan walks the folded text once and reports, per pattern rank, whether
// the pattern occurred (boundary-checked for short patterns).
func (a *automaton) scan(text string) []bool {
	hits := make([]bool, len(a.terms))
	cur := 0

	for i, r := range text {
		for {
			if next, ok := a.nodes[cur].next[r]; ok {
				cur = next
				break
			}
			if cur == 0 {
				break
			}
			cur = a.nodes[cur].fail
		}

		if len(a.nodes[cur].outputs) == 0 {
			continue
		}

		end := i + utf8.RuneLen(r)
		for _, idx := range a.nodes[cur].outputs {
			if hits[idx] {
				continue
			}
			if a.shortTerm[idx] && !boundedAt(text, end-len(a.terms[idx]), end) {
				continue
			}
			hits[idx] = true
		}
	}

	return hits
}
