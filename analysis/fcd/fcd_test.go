package fcd_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<fcd-export>
    <timestep time="0.00">
        <vehicle id="regular.0" x="0" y="0" angle="0" type="regular" speed="0.00" pos="890.00" lane="a_0" slope="0.00"/>
        <vehicle id="stable.0" x="0" y="0" angle="0" type="stable" speed="5.00" pos="10.00" lane="a_0" slope="0.00"/>
    </timestep>
    <timestep time="1.00">
        <vehicle id="regular.0" type="regular" speed="12.00" pos="0.47" lane="b_0"/>
        <vehicle id="stable.0" type="stable" speed="5.00" pos="15.00" lane="a_0"/>
    </timestep>
    <timestep time="2.00">
        <vehicle id="regular.0" type="regular" speed="12.00" pos="1.00" lane=":n0_0_0"/>
        <vehicle id="stable.0" type="stable" speed="5.00" pos="20.00" lane="a_0"/>
    </timestep>
    <timestep time="10.00">
        <vehicle id="regular.0" type="regular" speed="12.00" pos="5.00" lane="a_0"/>
    </timestep>
</fcd-export>
`

func parser(t *testing.T) *fcd.Parser {
	ring, err := road.NewRing(config.DefaultEdges)
	require.NoError(t, err)
	return fcd.NewParser(ring, fcd.NewClassifier([]config.ClassRule{{Match: "regular", Class: "regular"}}, "stable"))
}

func TestParseUnwrapsLaps(t *testing.T) {
	set, err := parser(t).Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, set.Trajectories, 2)
	assert.InDelta(t, 1000, set.RingLength, 1e-9)

	reg := set.Trajectories[0]
	assert.Equal(t, "regular.0", reg.ID)
	assert.Equal(t, "regular", reg.Class)
	// 内部车道样本被跳过
	require.Equal(t, 3, reg.Len())
	assert.InDelta(t, 890, reg.Pos[0], 1e-9)
	assert.InDelta(t, 902, reg.Pos[1], 1e-9)
	// 跨过环路起点后坐标继续增长
	assert.InDelta(t, 1005, reg.Pos[2], 1e-9)
	assert.Equal(t, []float64{0, 1, 10}, reg.Time)

	stb := set.Trajectories[1]
	assert.Equal(t, "stable", stb.Class)
	assert.Equal(t, []float64{10, 15, 20}, stb.Pos)

	assert.Equal(t, []string{"regular", "stable"}, set.Classes())
	assert.Len(t, set.Filter("stable").Trajectories, 1)
	assert.Len(t, set.Filter(fcd.ClassAll).Trajectories, 2)

	tMin, tMax, ok := set.TimeRange()
	assert.True(t, ok)
	assert.Equal(t, 0.0, tMin)
	assert.Equal(t, 10.0, tMax)
	assert.Equal(t, 6, set.Samples())
}

func TestParseErrors(t *testing.T) {
	_, err := parser(t).Parse(strings.NewReader(`<fcd-export></fcd-export>`))
	assert.ErrorIs(t, err, fcd.ErrNoData)

	_, err = parser(t).Parse(strings.NewReader(`<fcd-export><timestep time="0"><vehicle id="v" type="t" speed="x" pos="1" lane="a_0"/></timestep></fcd-export>`))
	assert.ErrorContains(t, err, "speed")

	_, err = parser(t).Parse(strings.NewReader(`<fcd-export><timestep time="0"><vehicle id="v" type="t" speed="1" pos="1" lane="z_0"/></timestep></fcd-export>`))
	assert.ErrorIs(t, err, road.ErrUnknownLane)
}
