package teachset

import "github.com/dyluth/locbridge/internal/register"

// Kind is the command carried by an edge.
type Kind int

const (
	Teach Kind = iota
	Set
)

func (k Kind) String() string {
	if k == Set {
		return "set"
	}
	return "teach"
}

// Edge is a rising command bit on one slot.
type Edge struct {
	Slot int
	Kind Kind
}

// FindEdge returns the first rising teach or set bit between two snapshots.
// Slots are scanned in order and teach is checked before set within a slot.
func FindEdge(prev, cur register.Block, n int) (Edge, bool) {
	edges := FindEdges(prev, cur, n)
	if len(edges) == 0 {
		return Edge{}, false
	}
	return edges[0], true
}

// FindEdges returns every rising bit in the order FindEdge would pick them.
func FindEdges(prev, cur register.Block, n int) []Edge {
	if n > len(prev) {
		n = len(prev)
	}
	if n > len(cur) {
		n = len(cur)
	}
	var edges []Edge
	for i := 0; i < n; i++ {
		if !prev[i].Teach && cur[i].Teach {
			edges = append(edges, Edge{Slot: i, Kind: Teach})
		}
		if !prev[i].Set && cur[i].Set {
			edges = append(edges, Edge{Slot: i, Kind: Set})
		}
	}
	return edges
}
