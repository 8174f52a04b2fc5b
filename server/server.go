// 分析服务：通过connect RPC提供轨迹分析、基本图拟合与环路稳定性查询
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/detector"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fundamental"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/trajectory"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "ringroad.v1.AnalysisService"

	SummarizeProcedure       = "/" + ServiceName + "/Summarize"
	FitFundamentalProcedure  = "/" + ServiceName + "/FitFundamental"
	RingEquilibriumProcedure = "/" + ServiceName + "/RingEquilibrium"
)

// Server 分析服务
type Server struct {
	ring     *road.Ring
	classify *fcd.Classifier
	types    map[string]config.VType
	analysis config.Analysis
	roots    []string // 客户端可指定文件所在的目录（绝对路径）
}

// New 创建分析服务
// 参数：ctx-任务上下文，提供环路、车辆类型表与分析配置
func New(ctx entity.ITaskContext) *Server {
	all := ctx.RuntimeConfig().All
	analysis := all.Analysis
	roots := lo.FilterMap([]string{all.Scenario.Dir, analysis.Dir}, func(dir string, _ int) (string, bool) {
		abs, err := filepath.Abs(dir)
		return abs, dir != "" && err == nil
	})
	return &Server{
		ring:     ctx.Ring(),
		classify: fcd.NewClassifier(analysis.Classes, analysis.DefaultClass),
		types:    ctx.VTypes(),
		analysis: analysis,
		roots:    roots,
	}
}

// resolve 校验客户端给出的文件路径
// 说明：只允许读取场景目录与分析输出目录下的文件，其余路径返回PermissionDenied
func (s *Server) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", invalid("%v", err)
	}
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", connect.NewError(connect.CodePermissionDenied,
		fmt.Errorf("%s is outside the scenario and analysis directories", path))
}

// Handler 返回服务路径前缀与HTTP处理器
func (s *Server) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(SummarizeProcedure, connect.NewUnaryHandler(SummarizeProcedure, s.Summarize, opts...))
	mux.Handle(FitFundamentalProcedure, connect.NewUnaryHandler(FitFundamentalProcedure, s.FitFundamental, opts...))
	mux.Handle(RingEquilibriumProcedure, connect.NewUnaryHandler(RingEquilibriumProcedure, s.RingEquilibrium, opts...))
	return "/" + ServiceName + "/", mux
}

// Register 将分析服务注册到sidecar
// 说明：分析请求只读取文件与配置，不修改共享状态，因此不需要syncer的步进锁
func (s *Server) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(ServiceName, s.Handler, syncer.WithNoLock())
}

// wrapError 把内部错误转换为connect错误码
func wrapError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, fcd.ErrNoData), errors.Is(err, detector.ErrNoData), errors.Is(err, fundamental.ErrNoData):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func invalid(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// SummarizeRequest 轨迹分析请求，缺省字段取服务配置
type SummarizeRequest struct {
	FCD       string  `json:"fcd"`
	DX        float64 `json:"dx"`
	DT        float64 `json:"dt"`
	Class     string  `json:"class"`
	StopSpeed float64 `json:"stop_speed"`
}

// SummarizeResponse 轨迹分析结果
type SummarizeResponse struct {
	Overview trajectory.Overview    `json:"overview"`
	Ranges   map[string]edie.Range  `json:"ranges"`
	Waves    []trajectory.ClassWave `json:"waves"`
}

// Summarize 解析FCD文件，返回Edie宏观量范围与走停波指标
func (s *Server) Summarize(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := decode[SummarizeRequest](req.Msg)
	if err != nil {
		return nil, invalid("%v", err)
	}
	switch {
	case in.FCD != "":
		if in.FCD, err = s.resolve(in.FCD); err != nil {
			return nil, err
		}
	case s.analysis.FCD != "":
		in.FCD = s.analysis.FCD
	default:
		return nil, invalid("fcd path is required")
	}
	in.DX = lo.Ternary(in.DX > 0, in.DX, s.analysis.DX)
	in.DT = lo.Ternary(in.DT > 0, in.DT, s.analysis.DT)
	in.StopSpeed = lo.Ternary(in.StopSpeed > 0, in.StopSpeed, s.analysis.StopSpeed)

	set, err := fcd.NewParser(s.ring, s.classify).ParseFile(in.FCD)
	if err != nil {
		return nil, wrapError(err)
	}
	set = set.Filter(in.Class)
	grid, err := edie.Compute(set, edie.Params{DX: in.DX, DT: in.DT})
	if err != nil {
		return nil, wrapError(err)
	}
	overview, err := trajectory.Analyze(set)
	if err != nil {
		return nil, wrapError(err)
	}
	waves, err := trajectory.AnalyzeWaves(set, in.StopSpeed)
	if err != nil {
		return nil, wrapError(err)
	}
	out := SummarizeResponse{
		Overview: overview,
		Ranges:   lo.MapKeys(grid.Ranges(), func(_ edie.Range, q edie.Quantity) string { return q.String() }),
		Waves:    waves.Classes,
	}
	res, err := encode(out)
	if err != nil {
		return nil, wrapError(err)
	}
	log.Debugf("summarize %s: %d vehicles", in.FCD, overview.Vehicles)
	return connect.NewResponse(res), nil
}

// FitRequest 基本图拟合请求
type FitRequest struct {
	Detector string `json:"detector"`
}

// FitResponse 基本图拟合结果
type FitResponse struct {
	Fit     fundamental.Fit     `json:"fit"`
	Summary fundamental.Summary `json:"summary"`
}

// FitFundamental 解析检测器输出，拟合Greenshields模型
func (s *Server) FitFundamental(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := decode[FitRequest](req.Msg)
	if err != nil {
		return nil, invalid("%v", err)
	}
	switch {
	case in.Detector != "":
		if in.Detector, err = s.resolve(in.Detector); err != nil {
			return nil, err
		}
	case s.analysis.Detector != "":
		in.Detector = s.analysis.Detector
	default:
		return nil, invalid("detector path is required")
	}
	d, err := detector.ParseFile(in.Detector)
	if err != nil {
		return nil, wrapError(err)
	}
	samples := fundamental.FromDetector(d)
	fit, err := fundamental.FitGreenshields(samples)
	if err != nil {
		return nil, wrapError(err)
	}
	summary, err := fundamental.Summarize(samples)
	if err != nil {
		return nil, wrapError(err)
	}
	res, err := encode(FitResponse{Fit: fit, Summary: summary})
	if err != nil {
		return nil, wrapError(err)
	}
	return connect.NewResponse(res), nil
}

// EquilibriumRequest 环路稳定性请求
// 说明：ring_length为0时使用场景环路长度
type EquilibriumRequest struct {
	VType      string  `json:"vtype"`
	RingLength float64 `json:"ring_length"`
	Count      int     `json:"count"`
}

// RingEquilibrium 计算均质环路的IDM稳态与弦稳定性
func (s *Server) RingEquilibrium(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := decode[EquilibriumRequest](req.Msg)
	if err != nil {
		return nil, invalid("%v", err)
	}
	t, ok := s.types[in.VType]
	if !ok {
		ids := lo.Keys(s.types)
		sort.Strings(ids)
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("unknown vtype %q, available: %v", in.VType, ids))
	}
	if in.RingLength <= 0 {
		in.RingLength = s.ring.Length()
	}
	m, err := vehicle.NewModel(t)
	if err != nil {
		return nil, invalid("%v", err)
	}
	eq, err := m.Ring(in.RingLength, in.Count)
	if err != nil {
		return nil, invalid("%v", err)
	}
	res, err := encode(eq)
	if err != nil {
		return nil, wrapError(err)
	}
	return connect.NewResponse(res), nil
}
