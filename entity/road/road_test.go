package road_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

func TestRingOffsets(t *testing.T) {
	r, err := road.NewRing(config.DefaultEdges)
	require.NoError(t, err)
	assert.InDelta(t, 1000, r.Length(), 1e-9)
	assert.Equal(t, []string{"a", "b"}, r.EdgeIDs())

	x, err := r.Position("b_0", 10)
	require.NoError(t, err)
	assert.InDelta(t, 911.53, x, 1e-9)

	x, err = r.Position("a_0", 10)
	require.NoError(t, err)
	assert.InDelta(t, 10, x, 1e-9)

	_, err = r.Position("c_0", 1)
	assert.ErrorIs(t, err, road.ErrUnknownLane)
}

func TestRingLocate(t *testing.T) {
	r, err := road.NewRing(config.DefaultEdges)
	require.NoError(t, err)

	edge, pos := r.Locate(950)
	assert.Equal(t, "b", edge)
	assert.InDelta(t, 48.47, pos, 1e-9)

	edge, pos = r.Locate(1010)
	assert.Equal(t, "a", edge)
	assert.InDelta(t, 10, pos, 1e-9)

	assert.InDelta(t, 990, r.Wrap(-10), 1e-9)
}

func TestRingInvalid(t *testing.T) {
	_, err := road.NewRing(nil)
	assert.Error(t, err)
	_, err = road.NewRing([]config.Edge{{ID: "a", Length: 0}})
	assert.Error(t, err)
	_, err = road.NewRing([]config.Edge{{ID: "a", Length: 1}, {ID: "a", Length: 2}})
	assert.Error(t, err)
}

func TestEdgeOfLane(t *testing.T) {
	assert.Equal(t, "a", road.EdgeOfLane("a_0"))
	assert.Equal(t, ":j_0", road.EdgeOfLane(":j_0_0"))
	assert.Equal(t, "a", road.EdgeOfLane("a"))
}
