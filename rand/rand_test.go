package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicStream(t *testing.T) {
	a := New(21475491852)
	b := New(21475491852)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uint32(), b.Uint32(), "streams diverged at %d", i)
	}

	c := New(21475491853)
	same := true
	a.Seed(21475491852)
	for i := 0; i < 10; i++ {
		if a.Uint32() != c.Uint32() {
			same = false
		}
	}
	assert.False(t, same, "different seeds must give different streams")
}

func TestIntnRange(t *testing.T) {
	r := New(42)
	for i := 0; i < 1000; i++ {
		v := r.Intn(7)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 7)
	}
}

func TestSampleN(t *testing.T) {
	items := make([]int, 500)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name    string
		n       int
		wantLen int
	}{
		{"downsample", 200, 200},
		{"n equals len", 500, 500},
		{"n larger than len", 600, 500},
		{"empty take", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleN(New(99), items, tt.n)
			assert.Len(t, got, tt.wantLen)

			seen := map[int]bool{}
			for _, v := range got {
				require.False(t, seen[v], "duplicate element %d", v)
				seen[v] = true
			}
		})
	}
}

func TestSampleNReproducible(t *testing.T) {
	items := make([]int, 500)
	for i := range items {
		items[i] = i * 3
	}

	first := SampleN(New(7), items, 200)
	second := SampleN(New(7), items, 200)
	assert.Equal(t, first, second)

	other := SampleN(New(8), items, 200)
	assert.NotEqual(t, first, other)
}

func TestSampleNDoesNotMutateInput(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	orig := append([]int(nil), items...)
	SampleN(New(3), items, 4)
	assert.Equal(t, orig, items)
}

// Over many seeds every element should be picked with roughly equal
// frequency; a heavily skewed sampler would fail the loose bounds here.
func TestSampleNRoughlyUniform(t *testing.T) {
	const n = 20
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}

	counts := make([]int, n)
	const runs = 2000
	for seed := 0; seed < runs; seed++ {
		for _, v := range SampleN(New(uint64(seed)), items, n/2) {
			counts[v]++
		}
	}

	expected := runs / 2 // each element picked with p=1/2
	for i, c := range counts {
		assert.InDelta(t, expected, c, float64(expected)/5, "element %d", i)
	}
}
