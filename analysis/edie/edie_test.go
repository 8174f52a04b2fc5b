package edie_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
)

// cruise 匀速行驶的车辆，每秒一个样本
func cruise(id, class string, x0, v float64, from, to int) *fcd.Trajectory {
	t := &fcd.Trajectory{ID: id, Type: class, Class: class}
	for s := from; s <= to; s++ {
		t.Time = append(t.Time, float64(s))
		t.Pos = append(t.Pos, x0+v*float64(s-from))
		t.Speed = append(t.Speed, v)
	}
	return t
}

func TestComputeUniform(t *testing.T) {
	set := &fcd.Set{
		Trajectories: []*fcd.Trajectory{cruise("v0", "regular", 0, 10, 0, 100)},
		RingLength:   1000,
	}
	g, err := edie.Compute(set, edie.Params{DX: 10, DT: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, g.NT)
	assert.Equal(t, 100, g.NX)
	assert.Equal(t, 1, g.Vehicles)

	totalTTS, totalTTD := 0., 0.
	for i := range g.NT {
		for j := range g.NX {
			totalTTS += g.TTS[i][j]
			totalTTD += g.TTD[i][j]
		}
	}
	assert.InDelta(t, 100, totalTTS, 1e-9)
	assert.InDelta(t, 1000, totalTTD, 1e-9)

	// 第0个时间单元内车辆经过x∈[0,100)
	assert.InDelta(t, 10, g.Value(edie.Density, 0, 3), 1e-9)
	assert.InDelta(t, 360, g.Value(edie.Flow, 0, 3), 1e-9)
	assert.InDelta(t, 36, g.Value(edie.Speed, 0, 3), 1e-9)
	assert.InDelta(t, 360, g.Value(edie.PassageFlow, 0, 3), 1e-9)
	assert.Zero(t, g.Value(edie.Density, 0, 50))
	assert.Zero(t, g.Value(edie.Speed, 0, 50))

	r := g.Ranges()
	assert.Zero(t, r[edie.Speed].Min)
	assert.InDelta(t, 36, r[edie.Speed].Max, 1e-9)
	assert.Len(t, g.Cells(), 1000)
}

func TestComputeSplitsAtSeam(t *testing.T) {
	tr := &fcd.Trajectory{
		ID: "v0", Class: "regular",
		Time:  []float64{0, 1},
		Pos:   []float64{995, 1005},
		Speed: []float64{10, 10},
	}
	g, err := edie.Compute(&fcd.Set{Trajectories: []*fcd.Trajectory{tr}, RingLength: 1000}, edie.Params{DX: 10, DT: 10})
	require.NoError(t, err)
	require.Equal(t, 1, g.NT)
	assert.InDelta(t, 0.5, g.TTS[0][99], 1e-9)
	assert.InDelta(t, 5, g.TTD[0][99], 1e-9)
	assert.InDelta(t, 0.5, g.TTS[0][0], 1e-9)
	assert.InDelta(t, 5, g.TTD[0][0], 1e-9)
	assert.Equal(t, 1., g.Passages[0][0])
	assert.Zero(t, g.Passages[0][99])
}

func TestComputeSplitsAtTimeBoundary(t *testing.T) {
	tr := &fcd.Trajectory{
		ID: "v0", Class: "stable",
		Time:  []float64{0, 5, 15},
		Pos:   []float64{1, 2, 4},
		Speed: []float64{0.2, 0.2, 0.2},
	}
	g, err := edie.Compute(&fcd.Set{Trajectories: []*fcd.Trajectory{tr}, RingLength: 1000}, edie.Params{DX: 10, DT: 10})
	require.NoError(t, err)
	require.Equal(t, 2, g.NT)
	assert.InDelta(t, 10, g.TTS[0][0], 1e-9)
	assert.InDelta(t, 5, g.TTS[1][0], 1e-9)
	assert.InDelta(t, 2, g.TTD[0][0], 1e-9)
	assert.InDelta(t, 1, g.TTD[1][0], 1e-9)
}

func TestComputeClassFilter(t *testing.T) {
	set := &fcd.Set{
		Trajectories: []*fcd.Trajectory{
			cruise("r", "regular", 0, 10, 0, 20),
			cruise("s", "stable", 500, 5, 0, 20),
		},
		RingLength: 1000,
	}
	all, err := edie.Compute(set, edie.Params{DX: 10, DT: 10, Class: fcd.ClassAll})
	require.NoError(t, err)
	reg, err := edie.Compute(set, edie.Params{DX: 10, DT: 10, Class: "regular"})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Vehicles)
	assert.Equal(t, 1, reg.Vehicles)
	assert.Zero(t, reg.TTS[0][50])
	assert.Positive(t, all.TTS[0][50])

	_, err = edie.Compute(set, edie.Params{DX: 10, DT: 10, Class: "missing"})
	assert.ErrorIs(t, err, fcd.ErrNoData)
	_, err = edie.Compute(set, edie.Params{DX: 0, DT: 10})
	assert.Error(t, err)
}

func TestClipRange(t *testing.T) {
	set := &fcd.Set{
		Trajectories: []*fcd.Trajectory{cruise("v0", "regular", 0, 10, 0, 100)},
		RingLength:   1000,
	}
	g, err := edie.Compute(set, edie.Params{DX: 10, DT: 10})
	require.NoError(t, err)
	r := g.ClipRange(edie.Density, 0, 100)
	assert.Equal(t, 0., r.Min)
	assert.InDelta(t, 10, r.Max, 1e-9)
}

func TestPercentile(t *testing.T) {
	x := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.InDelta(t, 19, edie.Percentile(x, 0.1), 1e-9)
	assert.InDelta(t, 55, edie.Percentile(x, 0.5), 1e-9)
	assert.InDelta(t, 99.1, edie.Percentile(x, 0.99), 1e-9)
	assert.Equal(t, 10., edie.Percentile(x, 0))
	assert.Equal(t, 100., edie.Percentile(x, 1))
	assert.Equal(t, 7., edie.Percentile([]float64{7}, 0.3))
	assert.True(t, math.IsNaN(edie.Percentile(nil, 0.5)))
}
