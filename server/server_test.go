package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/ringroad-sim/clock"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/ringroad-sim/server"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
	"google.golang.org/protobuf/types/known/structpb"
)

const fcdXML = `<fcd-export>
    <timestep time="0.00">
        <vehicle id="regular.0" type="regular" speed="10.00" pos="0.00" lane="a_0"/>
        <vehicle id="stable.0" type="stable" speed="5.00" pos="500.00" lane="a_0"/>
    </timestep>
    <timestep time="10.00">
        <vehicle id="regular.0" type="regular" speed="10.00" pos="100.00" lane="a_0"/>
        <vehicle id="stable.0" type="stable" speed="0.10" pos="550.00" lane="a_0"/>
    </timestep>
</fcd-export>
`

const detectorXML = `<detector>
    <interval begin="0.00" end="30.00" id="det_0" flow="720.00" occupancy="8.50" harmonicMeanSpeed="10.00"/>
    <interval begin="30.00" end="60.00" id="det_0" flow="360.00" occupancy="20.00" harmonicMeanSpeed="2.50"/>
</detector>
`

// taskContext 测试用任务上下文
type taskContext struct {
	ring  *road.Ring
	types map[string]config.VType
	rc    *config.RuntimeConfig
}

func (c *taskContext) Clock() *clock.Clock                  { return nil }
func (c *taskContext) Ring() *road.Ring                     { return c.ring }
func (c *taskContext) VTypes() map[string]config.VType      { return c.types }
func (c *taskContext) RuntimeConfig() *config.RuntimeConfig { return c.rc }

type fixture struct {
	url string
	dir string
}

func setup(t *testing.T) fixture {
	dir := t.TempDir()
	rc := config.NewRuntimeConfig(config.Config{Scenario: config.Scenario{Dir: dir}})
	ring, err := road.NewRing(rc.All.Scenario.Edges)
	require.NoError(t, err)
	types, err := vehicle.ValidateTable([]config.VType{
		{ID: "regular", Accel: 1.0, Decel: 1.5, Tau: 1.0, MinGap: 2, MaxSpeed: 30, Length: 5},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fcd.xml"), []byte(fcdXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "det.xml"), []byte(detectorXML), 0o644))

	_, handler := server.New(&taskContext{ring: ring, types: types, rc: rc}).Handler()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return fixture{url: srv.URL, dir: dir}
}

func call(t *testing.T, f fixture, procedure string, req map[string]any) (map[string]any, error) {
	msg, err := structpb.NewStruct(req)
	require.NoError(t, err)
	client := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, f.url+procedure)
	res, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg.AsMap(), nil
}

func TestRingEquilibrium(t *testing.T) {
	f := setup(t)
	out, err := call(t, f, server.RingEquilibriumProcedure, map[string]any{"vtype": "regular", "count": 40})
	require.NoError(t, err)
	assert.InDelta(t, 1000, out["ring_length"], 1e-9)
	assert.InDelta(t, 20, out["gap"], 1e-9)
	assert.EqualValues(t, 40, out["count"])

	_, err = call(t, f, server.RingEquilibriumProcedure, map[string]any{"vtype": "missing", "count": 40})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = call(t, f, server.RingEquilibriumProcedure, map[string]any{"vtype": "regular", "count": 500})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestSummarize(t *testing.T) {
	f := setup(t)
	out, err := call(t, f, server.SummarizeProcedure, map[string]any{"fcd": filepath.Join(f.dir, "fcd.xml")})
	require.NoError(t, err)
	overview := out["overview"].(map[string]any)
	assert.EqualValues(t, 2, overview["vehicles"])
	ranges := out["ranges"].(map[string]any)
	assert.Contains(t, ranges, "density")
	assert.Contains(t, ranges, "speed")
	waves := out["waves"].([]any)
	assert.Len(t, waves, 2)

	_, err = call(t, f, server.SummarizeProcedure, map[string]any{"fcd": filepath.Join(f.dir, "missing.xml")})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = call(t, f, server.SummarizeProcedure, map[string]any{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestFitFundamental(t *testing.T) {
	f := setup(t)
	out, err := call(t, f, server.FitFundamentalProcedure, map[string]any{"detector": filepath.Join(f.dir, "det.xml")})
	require.NoError(t, err)
	summary := out["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["samples"])
	assert.InDelta(t, 540, summary["mean_flow"], 1e-9)
	fit := out["fit"].(map[string]any)
	assert.Positive(t, fit["kj"])
}

func TestRejectsPathsOutsideDirs(t *testing.T) {
	f := setup(t)
	outside := filepath.Join(t.TempDir(), "fcd.xml")
	require.NoError(t, os.WriteFile(outside, []byte(fcdXML), 0o644))

	_, err := call(t, f, server.SummarizeProcedure, map[string]any{"fcd": outside})
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = call(t, f, server.SummarizeProcedure, map[string]any{"fcd": filepath.Join(f.dir, "..", "fcd.xml")})
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = call(t, f, server.FitFundamentalProcedure, map[string]any{"detector": "/etc/passwd"})
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
}
