package plotting_test

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fundamental"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/trajectory"
	"github.com/tsinghua-fib-lab/ringroad-sim/plotting"
)

func testSet() *fcd.Set {
	t := &fcd.Trajectory{ID: "v0", Class: "regular"}
	for s := range 61 {
		t.Time = append(t.Time, float64(s))
		t.Pos = append(t.Pos, 20*float64(s))
		t.Speed = append(t.Speed, 20)
	}
	return &fcd.Set{Trajectories: []*fcd.Trajectory{t}, RingLength: 1000}
}

func assertFile(t *testing.T, file string) {
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRedYellowGreen(t *testing.T) {
	c := plotting.RedYellowGreen(3, false).Colors()
	require.Len(t, c, 3)
	assert.Equal(t, color.NRGBA{R: 204, A: 255}, c[0])
	assert.Equal(t, color.NRGBA{R: 255, G: 255, A: 255}, c[1])
	assert.Equal(t, color.NRGBA{G: 204, A: 255}, c[2])

	r := plotting.RedYellowGreen(3, true).Colors()
	assert.Equal(t, c[0], r[2])
}

func TestContourAndTimeSpace(t *testing.T) {
	dir := t.TempDir()
	set := testSet()
	g, err := edie.Compute(set, edie.Params{DX: 10, DT: 10})
	require.NoError(t, err)
	for _, q := range edie.Quantities {
		file := filepath.Join(dir, q.String()+".png")
		require.NoError(t, plotting.Contour(g, q, "all", file))
		assertFile(t, file)
	}
	r := plotting.ColorRange(g, edie.Density)
	assert.Zero(t, r.Min)
	assert.Greater(t, r.Max, r.Min)

	file := filepath.Join(dir, "ts.svg")
	require.NoError(t, plotting.TimeSpace(trajectory.Points(set, 0),
		plotting.Window{Start: 0, End: 60, Length: 1000, SpeedMax: 20}, file))
	assertFile(t, file)

	assert.Error(t, plotting.Contour(g, edie.Speed, "all", filepath.Join(dir, "x.bmp")))
}

func TestFundamentalAndStd(t *testing.T) {
	dir := t.TempDir()
	s := fundamental.Samples{
		Density: []float64{5, 20, 40, 60, 80},
		Speed:   []float64{70, 60, 45, 35, 20},
		Flow:    []float64{350, 1200, 1800, 2100, 1600},
	}
	f, err := fundamental.FitGreenshields(s)
	require.NoError(t, err)
	file := filepath.Join(dir, "fd.png")
	require.NoError(t, plotting.Fundamental(s, f, file))
	assertFile(t, file)

	w, err := trajectory.AnalyzeWaves(testSet(), 0.5)
	require.NoError(t, err)
	file = filepath.Join(dir, "std.pdf")
	require.NoError(t, plotting.SpeedStd(w.FleetStd, file))
	assertFile(t, file)
}
