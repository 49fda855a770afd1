package facilities

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// unionFind is a disjoint-set over point indexes.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri != rj {
		u.parent[rj] = ri
	}
}

// Cluster assigns a cluster id to every point such that any two
// points at most maxDistance metres apart (great-circle) end up in
// the same cluster, transitively. IDs are sequential in order of
// first appearance. The facility inventory is a few thousand points,
// small enough for the pairwise pass.
func Cluster(points []orb.Point, maxDistance float64) []int {
	u := newUnionFind(len(points))
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if geo.DistanceHaversine(points[i], points[j]) <= maxDistance {
				u.union(i, j)
			}
		}
	}

	ids := make([]int, len(points))
	assigned := make(map[int]int)
	for i := range points {
		root := u.find(i)
		id, ok := assigned[root]
		if !ok {
			id = len(assigned)
			assigned[root] = id
		}
		ids[i] = id
	}
	return ids
}
