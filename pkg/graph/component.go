package graph

import "sort"

// Component is a maximal set of mutually reachable nodes. Components are
// derived on demand and never stored as identity; any mutation of the
// graph invalidates them.
type Component struct {
	Nodes []NodeID // ascending
}

// Len returns the node count of the component.
func (c Component) Len() int {
	return len(c.Nodes)
}

// MinNode returns the smallest node id in the component. It doubles as a
// stable identifier for reporting.
func (c Component) MinNode() NodeID {
	return c.Nodes[0]
}

// Contains reports whether the component includes the node. Nodes are
// sorted, so this is a binary search.
func (c Component) Contains(id NodeID) bool {
	i := sort.Search(len(c.Nodes), func(i int) bool { return c.Nodes[i] >= id })
	return i < len(c.Nodes) && c.Nodes[i] == id
}

// unionFind implements a disjoint-set structure with path halving and
// union by rank over compact node indices.
type unionFind struct {
	parent []int32
	rank   []byte
	size   []int32
}

func newUnionFind(n int) *unionFind {
	parent := make([]int32, n)
	size := make([]int32, n)
	for i := range parent {
		parent[i] = int32(i)
		size[i] = 1
	}
	return &unionFind{parent: parent, rank: make([]byte, n), size: size}
}

func (uf *unionFind) find(x int32) int32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int32) {
	rx := uf.find(x)
	ry := uf.find(y)
	if rx == ry {
		return
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
}

// Components computes the connected components of the graph, ordered by
// descending node count; equally sized components are ordered by their
// smallest node id. Isolated nodes form singleton components. The graph
// is not modified.
func (g *Graph) Components() []Component {
	if len(g.nodes) == 0 {
		return nil
	}

	ids := g.NodeIDs()
	idx := make(map[NodeID]int32, len(ids))
	for i, id := range ids {
		idx[id] = int32(i)
	}

	uf := newUnionFind(len(ids))
	for _, e := range g.edges {
		uf.union(idx[e.A], idx[e.B])
	}

	groups := make(map[int32][]NodeID)
	for i, id := range ids {
		root := uf.find(int32(i))
		groups[root] = append(groups[root], id)
	}

	comps := make([]Component, 0, len(groups))
	for _, nodes := range groups {
		// ids were iterated in ascending order, so each group is sorted.
		comps = append(comps, Component{Nodes: nodes})
	}
	sort.Slice(comps, func(i, j int) bool {
		if comps[i].Len() != comps[j].Len() {
			return comps[i].Len() > comps[j].Len()
		}
		return comps[i].MinNode() < comps[j].MinNode()
	})
	return comps
}
