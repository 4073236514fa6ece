package structural

import (
	"context"
	"sort"

	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// maxSteps bounds the backtracking work spent on one candidate node.
const maxSteps = 1 << 16

// cancelCheckInterval is how many nodes are visited between context checks.
const cancelCheckInterval = 1024

// Binding is one captured metavariable.
type Binding struct {
	Name      string
	StartByte uint32
	EndByte   uint32
	Text      string
}

// TreeMatch is one node matched by a pattern.
type TreeMatch struct {
	Node     grammar.NodeID
	Bindings []Binding // in first-capture order, one per name
}

// BindingMap returns the captures as a name → text map.
func (m *TreeMatch) BindingMap() map[string]string {
	out := make(map[string]string, len(m.Bindings))
	for _, b := range m.Bindings {
		out[b.Name] = b.Text
	}
	return out
}

// MatchTree walks t depth-first and returns every node the pattern unifies
// with. Unless nested is set, the interior of a matched node is not searched.
// A cancelled context stops the walk and returns the matches found so far.
func (p *Pattern) MatchTree(ctx context.Context, t *grammar.Tree, nested bool) ([]TreeMatch, error) {
	if len(t.Nodes) == 0 {
		return nil, nil
	}

	u := &unifier{p: p, t: t}
	var out []TreeMatch
	visited := 0
	var walkErr error
	var lastStart, lastEnd uint32
	haveLast := false

	t.Walk(grammar.Root, func(id grammar.NodeID) bool {
		if walkErr != nil {
			return false
		}
		visited++
		if visited%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				walkErr = err
				return false
			}
		}

		if !p.isCandidate(t, id) {
			return true
		}
		n := t.Node(id)
		binds, ok := u.unify(n.FirstLeaf, n.EndLeaf)
		if !ok {
			return true
		}
		// Wrappers sharing a span with their child report once
		if haveLast && n.StartByte == lastStart && n.EndByte == lastEnd {
			return nested
		}
		lastStart, lastEnd, haveLast = n.StartByte, n.EndByte, true
		out = append(out, TreeMatch{Node: id, Bindings: binds})
		return nested
	})

	return out, walkErr
}

// isCandidate applies the cheap checks before unification.
func (p *Pattern) isCandidate(t *grammar.Tree, id grammar.NodeID) bool {
	n := t.Node(id)
	if n.Extra || n.EndLeaf <= n.FirstLeaf {
		return false
	}
	if p.rootKind != "" {
		if n.Kind != p.rootKind {
			return false
		}
	} else if id == grammar.Root {
		return false
	}

	// Anchored literals at either end must agree
	if first := p.elems[0]; first.kind == elemLiteral && t.Text(t.Leaves[n.FirstLeaf]) != first.text {
		return false
	}
	if last := p.elems[len(p.elems)-1]; last.kind == elemLiteral && t.Text(t.Leaves[n.EndLeaf-1]) != last.text {
		return false
	}
	return int(n.EndLeaf-n.FirstLeaf) >= p.minLeaves()
}

// minLeaves is the number of tokens the pattern consumes at least.
func (p *Pattern) minLeaves() int {
	n := 0
	for _, e := range p.elems {
		if e.kind != elemMulti {
			n++
		}
	}
	return n
}

// choice is a backtracking point: a capture with alternative end positions.
type choice struct {
	elem  int
	start int32
	ends  []int32 // candidate end leaves, preferred first
	next  int
	nbind int
}

type unifier struct {
	p *Pattern
	t *grammar.Tree
}

// unify matches the pattern program against leaves [lo, hi). Captures are
// greedy; on failure the most recent capture retries its next alternative.
func (u *unifier) unify(lo, hi int32) ([]Binding, bool) {
	elems := u.p.elems
	var stack []choice
	var binds []Binding
	pi, li := 0, lo
	steps := 0

	// retry resumes from the most recent choice point with an untried
	// alternative whose binding is consistent.
	retry := func() bool {
		for len(stack) > 0 {
			c := &stack[len(stack)-1]
			c.next++
			if c.next >= len(c.ends) {
				stack = stack[:len(stack)-1]
				continue
			}
			binds = binds[:c.nbind]
			if u.bind(&binds, elems[c.elem].name, c.start, c.ends[c.next]) {
				pi, li = c.elem+1, c.ends[c.next]
				return true
			}
		}
		return false
	}

	for {
		steps++
		if steps > maxSteps {
			return nil, false
		}

		if pi == len(elems) {
			if li == hi {
				return binds, true
			}
			if !retry() {
				return nil, false
			}
			continue
		}

		e := elems[pi]
		switch e.kind {
		case elemLiteral:
			if li < hi && u.t.Text(u.t.Leaves[li]) == e.text {
				pi++
				li++
				continue
			}
		case elemSingle, elemMulti:
			var ends []int32
			if e.kind == elemSingle {
				ends = u.nodeEnds(li, hi)
			} else {
				ends = u.balancedEnds(li, hi)
			}
			if len(ends) > 0 {
				stack = append(stack, choice{elem: pi, start: li, ends: ends, next: -1, nbind: len(binds)})
			}
		}
		if !retry() {
			return nil, false
		}
	}
}

// bind records a capture, rejecting a repeated name bound to different text.
func (u *unifier) bind(binds *[]Binding, name string, from, to int32) bool {
	b := Binding{Name: name}
	if to > from {
		b.StartByte = u.t.Node(u.t.Leaves[from]).StartByte
		b.EndByte = u.t.Node(u.t.Leaves[to-1]).EndByte
		b.Text = string(u.t.Source[b.StartByte:b.EndByte])
	} else if from < int32(len(u.t.Leaves)) {
		b.StartByte = u.t.Node(u.t.Leaves[from]).StartByte
		b.EndByte = b.StartByte
	}
	if name == Anonymous {
		return true
	}
	for _, prev := range *binds {
		if prev.Name == name {
			return prev.Text == b.Text
		}
	}
	*binds = append(*binds, b)
	return true
}

// nodeEnds returns the end leaves of named nodes starting at leaf li and
// fitting before hi, largest first.
func (u *unifier) nodeEnds(li, hi int32) []int32 {
	if li >= hi {
		return nil
	}
	var ends []int32
	id := u.t.Leaves[li]
	for id != grammar.NoNode {
		n := u.t.Node(id)
		if n.FirstLeaf != li || n.EndLeaf > hi {
			break
		}
		if n.Named && (len(ends) == 0 || ends[len(ends)-1] != n.EndLeaf) {
			ends = append(ends, n.EndLeaf)
		}
		id = n.Parent
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i] > ends[j] })
	return ends
}

// balancedEnds returns every end leaf in [li, hi] such that leaves
// [li, end) have balanced brackets, longest first. The empty span is last.
func (u *unifier) balancedEnds(li, hi int32) []int32 {
	ends := []int32{li}
	depth := 0
	for i := li; i < hi; i++ {
		switch u.t.Text(u.t.Leaves[i]) {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		if depth < 0 {
			break
		}
		if depth == 0 {
			ends = append(ends, i+1)
		}
	}
	for i, j := 0, len(ends)-1; i < j; i, j = i+1, j-1 {
		ends[i], ends[j] = ends[j], ends[i]
	}
	return ends
}
