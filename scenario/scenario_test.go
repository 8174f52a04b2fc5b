package scenario_test

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/scenario"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

func ringConfig() config.Scenario {
	return config.Scenario{
		Name:  "ring",
		Edges: config.DefaultEdges,
		VTypes: []config.VType{
			{ID: "regular", Accel: 1.0, Decel: 1.5, Tau: 1.0, MinGap: 2, MaxSpeed: 30, Length: 5, Sigma: 0.5},
			{ID: "stable", Accel: 1.5, Decel: 2.0, Tau: 1.6, MinGap: 2.5, MaxSpeed: 30, Length: 5, Color: "0,1,0"},
		},
		Groups: []config.Group{{Type: "regular", Count: 20}, {Type: "stable", Count: 2}},
		Step:   config.ControlStep{Start: 0, Total: 6000, Interval: 0.1},
		Detector: &config.Detector{
			ID: "loop", Lane: "a_0", Pos: 100, Period: 30,
		},
		Seed: 42,
	}
}

func TestPlaceBlocked(t *testing.T) {
	s, err := scenario.New(ringConfig())
	require.NoError(t, err)
	placements, err := s.Place()
	require.NoError(t, err)
	require.Len(t, placements, 22)

	spacing := 1000.0 / 22
	assert.Equal(t, "regular.0", placements[0].ID)
	assert.Equal(t, "a", placements[0].Edge)
	assert.Equal(t, "stable.1", placements[21].ID)
	assert.Equal(t, "b", placements[21].Edge)
	assert.InDelta(t, 21*spacing-901.53, placements[21].DepartPos, 1e-9)
	for i := 1; i < len(placements); i++ {
		assert.InDelta(t, spacing, placements[i].X-placements[i-1].X, 1e-9)
	}
}

func TestPlaceMixedKeepsCounts(t *testing.T) {
	c := ringConfig()
	c.Mixed = true
	s, err := scenario.New(c)
	require.NoError(t, err)
	placements, err := s.Place()
	require.NoError(t, err)

	counts := map[string]int{}
	ids := map[string]struct{}{}
	for _, p := range placements {
		counts[p.Type]++
		ids[p.ID] = struct{}{}
	}
	assert.Equal(t, 20, counts["regular"])
	assert.Equal(t, 2, counts["stable"])
	assert.Len(t, ids, 22)
}

func TestPlaceTooDense(t *testing.T) {
	c := ringConfig()
	c.Groups = []config.Group{{Type: "regular", Count: 200}}
	s, err := scenario.New(c)
	require.NoError(t, err)
	_, err = s.Place()
	assert.Error(t, err)
}

type routes struct {
	VTypes []struct {
		ID             string  `xml:"id,attr"`
		CarFollowModel string  `xml:"carFollowModel,attr"`
		Accel          float64 `xml:"accel,attr"`
		Decel          float64 `xml:"decel,attr"`
		Tau            float64 `xml:"tau,attr"`
		MinGap         float64 `xml:"minGap,attr"`
		MaxSpeed       float64 `xml:"maxSpeed,attr"`
		Length         float64 `xml:"length,attr"`
		Color          string  `xml:"color,attr"`
	} `xml:"vType"`
	Routes []struct {
		ID     string `xml:"id,attr"`
		Edges  string `xml:"edges,attr"`
		Repeat int    `xml:"repeat,attr"`
	} `xml:"route"`
	Vehicles []struct {
		ID        string  `xml:"id,attr"`
		Route     string  `xml:"route,attr"`
		DepartPos float64 `xml:"departPos,attr"`
	} `xml:"vehicle"`
}

func TestWriteRoutesTranscribesVTypes(t *testing.T) {
	s, err := scenario.New(ringConfig())
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, s.WriteRoutes(&buf))

	var doc routes
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.VTypes, 2)
	reg := doc.VTypes[0]
	assert.Equal(t, "regular", reg.ID)
	assert.Equal(t, "IDM", reg.CarFollowModel)
	assert.Equal(t, 1.0, reg.Accel)
	assert.Equal(t, 1.5, reg.Decel)
	assert.Equal(t, 1.0, reg.Tau)
	assert.Equal(t, 2.0, reg.MinGap)
	assert.Equal(t, 30.0, reg.MaxSpeed)
	assert.Equal(t, 5.0, reg.Length)
	assert.Equal(t, "0,1,0", doc.VTypes[1].Color)

	require.Len(t, doc.Routes, 2)
	assert.Equal(t, "ring_a", doc.Routes[0].ID)
	assert.Equal(t, "a b", doc.Routes[0].Edges)
	assert.Equal(t, "b a", doc.Routes[1].Edges)
	assert.Equal(t, 19, doc.Routes[0].Repeat)

	require.Len(t, doc.Vehicles, 22)
	assert.Equal(t, "ring_b", doc.Vehicles[21].Route)
}

func TestGenerate(t *testing.T) {
	s, err := scenario.New(ringConfig())
	require.NoError(t, err)
	dir := t.TempDir()
	files, err := s.Generate(dir)
	require.NoError(t, err)

	for _, name := range []string{files.Nodes, files.Edges, files.NetConfig, files.Routes, files.Config, files.Additional} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	cfg, err := os.ReadFile(filepath.Join(dir, files.Config))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), `<step-length value="0.1"></step-length>`)
	assert.Contains(t, string(cfg), `<end value="600"></end>`)
	assert.Contains(t, string(cfg), `<fcd-output value="ring.fcd.xml"></fcd-output>`)

	add, err := os.ReadFile(filepath.Join(dir, files.Additional))
	require.NoError(t, err)
	assert.Contains(t, string(add), `<inductionLoop id="loop" lane="a_0" pos="100" period="30" file="ring.det.xml"></inductionLoop>`)
}

func TestNewRejectsBadInput(t *testing.T) {
	c := ringConfig()
	c.Groups = append(c.Groups, config.Group{Type: "truck", Count: 1})
	_, err := scenario.New(c)
	assert.Error(t, err)

	c = ringConfig()
	c.Flows = []config.Flow{{ID: "f", Type: "regular", Begin: 0, End: 10}}
	_, err = scenario.New(c)
	assert.Error(t, err)

	c = ringConfig()
	c.Detector.Lane = "z_0"
	_, err = scenario.New(c)
	assert.Error(t, err)

	c = ringConfig()
	c.VTypes[0].Decel = 0
	_, err = scenario.New(c)
	assert.Error(t, err)
}

// departures 按文档顺序返回车辆与流量定义的(id, 出发时间)
func departures(t *testing.T, data []byte) (ids []string, times []float64) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || (se.Name.Local != "vehicle" && se.Name.Local != "flow") {
			continue
		}
		var id, at string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "id":
				id = a.Value
			case "depart", "begin":
				at = a.Value
			}
		}
		v, err := strconv.ParseFloat(at, 64)
		require.NoError(t, err)
		ids = append(ids, id)
		times = append(times, v)
	}
	return
}

func TestWriteRoutesSortsDepartures(t *testing.T) {
	c := ringConfig()
	c.Step.Start = 100
	c.Flows = []config.Flow{
		{ID: "late", Type: "stable", Begin: 20, End: 60, Number: 5},
		{ID: "early", Type: "regular", Begin: 0, End: 50, VehsPerHour: 360},
	}
	s, err := scenario.New(c)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, s.WriteRoutes(&buf))

	ids, times := departures(t, buf.Bytes())
	require.Len(t, ids, 24)
	assert.Equal(t, "early", ids[0])
	assert.Equal(t, "regular.0", ids[1])
	assert.Equal(t, "stable.1", ids[22])
	assert.Equal(t, "late", ids[23])
	assert.True(t, sort.Float64sAreSorted(times))
	assert.Contains(t, buf.String(), `<flow id="early" type="regular" route="ring_a" begin="0" end="50" vehsPerHour="360" departSpeed="max">`)
}

func TestPlaceJitter(t *testing.T) {
	c := ringConfig()
	c.Jitter = 3
	s, err := scenario.New(c)
	require.NoError(t, err)
	placements, err := s.Place()
	require.NoError(t, err)
	require.Len(t, placements, 22)

	spacing := 1000.0 / 22
	moved := 0
	for i, p := range placements {
		assert.GreaterOrEqual(t, p.X, float64(i)*spacing-1e-9)
		assert.Less(t, p.X, float64(i)*spacing+3+1e-9)
		if p.X > float64(i)*spacing+1e-9 {
			moved++
		}
	}
	assert.Positive(t, moved)

	c.Jitter = 40
	s, err = scenario.New(c)
	require.NoError(t, err)
	_, err = s.Place()
	assert.Error(t, err)

	c.Jitter = -1
	_, err = scenario.New(c)
	assert.Error(t, err)
}
