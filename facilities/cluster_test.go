package facilities

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

// Degrees chosen so the pair distances sit clearly on either side of
// the thresholds: 0.004 deg of latitude is ~445 m, 0.008 deg ~891 m,
// 0.016 deg ~1781 m.
var clusterPoints = []orb.Point{
	{13.0, 52.0},   // pair a
	{11.5, 48.1},   // loner
	{10.0, 50.0},   // chain start
	{13.0, 52.004}, // pair a, ~445 m away
	{10.0, 50.008}, // ~891 m from chain start
	{10.0, 50.016}, // ~891 m from previous, ~1781 m from chain start
}

func TestCluster(t *testing.T) {
	ids := Cluster(clusterPoints, 1000)

	// the chain merges transitively even though its endpoints are
	// more than 1000 m apart
	assert.Equal(t, []int{0, 1, 2, 0, 2, 2}, ids)
}

func TestClusterThreshold(t *testing.T) {
	ids := Cluster(clusterPoints, 400)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ids, "no pair is within 400 m")
}

func TestClusterEmpty(t *testing.T) {
	assert.Empty(t, Cluster(nil, 1000))
}
