package trajectory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/trajectory"
)

func testSet() *fcd.Set {
	return &fcd.Set{
		RingLength: 1000,
		Trajectories: []*fcd.Trajectory{
			{
				ID: "regular.0", Type: "regular", Class: "regular",
				Time:  []float64{0, 1, 2, 3, 4, 5},
				Pos:   []float64{980, 990, 1000.1, 1001, 1002, 1012},
				Speed: []float64{10, 10, 0.2, 0.8, 1.2, 10},
				Lane:  []string{"b_0", "b_0", "a_0", "a_0", "a_0", "a_0"},
			},
			{
				ID: "stable.0", Type: "stable", Class: "stable",
				Time:  []float64{0, 1, 2, 3, 4, 5},
				Pos:   []float64{500, 505, 510, 515, 520, 525},
				Speed: []float64{5, 5, 5, 5, 5, 5},
				Lane:  []string{"a_0", "a_0", "a_0", "a_0", "a_0", "a_0"},
			},
		},
	}
}

func TestPoints(t *testing.T) {
	points := trajectory.Points(testSet(), 0)
	// 跨圈后的第一个样本被跳过
	require.Len(t, points, 11)
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i-1].X, points[i].X)
	}
	assert.InDelta(t, 1, points[0].X, 1e-9)
	assert.Equal(t, 3., points[0].T)
	assert.InDelta(t, 990, points[len(points)-1].X, 1e-9)
}

func TestAnalyzeAndReport(t *testing.T) {
	o, err := trajectory.Analyze(testSet())
	require.NoError(t, err)
	assert.Equal(t, 2, o.Vehicles)
	assert.Equal(t, 0.2, o.SpeedMin)
	assert.Equal(t, 10., o.SpeedMax)
	assert.Equal(t, 1000., o.RoadLength)

	report := trajectory.VehicleReport(testSet())
	require.Len(t, report, 2)
	assert.Equal(t, "regular.0", report[0].ID)
	assert.Equal(t, "b_0", report[0].Lane)
	assert.Equal(t, 5., report[0].Last)
	assert.Equal(t, 5., report[1].SpeedMin)

	_, err = trajectory.Analyze(&fcd.Set{RingLength: 1000})
	assert.ErrorIs(t, err, fcd.ErrNoData)
}

func TestAnalyzeWaves(t *testing.T) {
	w, err := trajectory.AnalyzeWaves(testSet(), 0.5)
	require.NoError(t, err)
	require.Len(t, w.Vehicles, 2)

	reg := w.Vehicles[0]
	// 0.8没有超过1.0，不算恢复行驶
	assert.Equal(t, 1, reg.Stops)
	assert.InDelta(t, 2, reg.TimeStopped, 1e-9)
	assert.Positive(t, reg.SpeedStd)

	stb := w.Vehicles[1]
	assert.Zero(t, stb.Stops)
	assert.Zero(t, stb.SpeedStd)

	require.Len(t, w.Classes, 2)
	assert.Equal(t, "regular", w.Classes[0].Class)
	assert.Equal(t, 1., w.Classes[0].Stops)
	assert.InDelta(t, 5, w.Classes[1].MeanSpeed, 1e-9)

	require.Len(t, w.FleetStd, 6)
	assert.InDelta(t, 2.5, w.FleetStd[0].Std, 1e-9)
	assert.Equal(t, 5., w.FleetStd[5].T)
}
