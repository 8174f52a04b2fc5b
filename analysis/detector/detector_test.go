package detector_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/detector"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<detector xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
    <interval begin="0.00" end="30.00" id="det_0" nVehContrib="0" flow="0.00" occupancy="0.00" speed="-1.00" harmonicMeanSpeed="-1.00" length="-1.00" nVehEntered="0"/>
    <interval begin="30.00" end="60.00" id="det_0" nVehContrib="6" flow="720.00" occupancy="8.50" speed="10.20" harmonicMeanSpeed="10.00" length="5.00" nVehEntered="6"/>
    <interval begin="60.00" end="90.00" id="det_0" nVehContrib="3" flow="360.00" occupancy="20.00" speed="2.60" harmonicMeanSpeed="2.50" length="5.00" nVehEntered="3"/>
</detector>
`

func TestParse(t *testing.T) {
	s, err := detector.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{30, 60}, s.Time)
	assert.Equal(t, []float64{720, 360}, s.Flow)
	assert.InDelta(t, 20, s.Density[0], 1e-9)
	assert.InDelta(t, 40, s.Density[1], 1e-9)
	assert.InDelta(t, 36, s.SpeedKmh()[0], 1e-9)
	assert.Equal(t, []float64{8.5, 20}, s.Occupancy)
}

func TestParseEmpty(t *testing.T) {
	_, err := detector.Parse(strings.NewReader(`<detector><interval begin="0" end="1" flow="0" harmonicMeanSpeed="-1"/></detector>`))
	assert.ErrorIs(t, err, detector.ErrNoData)

	_, err = detector.Parse(strings.NewReader(`<detector><interval begin="x"/></detector>`))
	assert.Error(t, err)
}
