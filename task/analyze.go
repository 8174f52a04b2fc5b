package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/detector"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fundamental"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/trajectory"
	"github.com/tsinghua-fib-lab/ringroad-sim/plotting"
	"github.com/tsinghua-fib-lab/ringroad-sim/store"
)

// contourQuantities 绘制等值图的宏观量
var contourQuantities = []edie.Quantity{edie.Density, edie.Flow, edie.Speed}

// results 并发分析过程中收集的数据库记录与错误
type results struct {
	mu      sync.Mutex
	records []store.Record
	errs    []error
}

func (r *results) add(kind, class string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, store.Record{Kind: kind, Class: class, Data: data})
}

func (r *results) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// Generate 写出场景文件
func (ctx *Context) Generate() (string, error) {
	dir := ctx.runtimeConfig.All.Scenario.Dir
	if _, err := ctx.scenario.Generate(dir); err != nil {
		return dir, err
	}
	return dir, nil
}

// inputs 确定FCD与检测器输入文件
// 说明：未显式配置时从场景输出目录推断；推断出的检测器文件不存在时跳过检测器分析
func (ctx *Context) inputs() (fcdPath, detPath string, err error) {
	a := ctx.runtimeConfig.All.Analysis
	files := ctx.scenario.FileNames()
	dir := ctx.runtimeConfig.All.Scenario.Dir
	fcdPath = lo.Ternary(a.FCD != "", a.FCD, filepath.Join(dir, files.FCD))
	if a.Detector != "" {
		return fcdPath, a.Detector, nil
	}
	if ctx.runtimeConfig.All.Scenario.Detector == nil {
		return fcdPath, "", nil
	}
	detPath = filepath.Join(dir, files.Detector)
	if _, err := os.Stat(detPath); err != nil {
		log.Warnf("detector output %s not found, skip detector analysis", detPath)
		return fcdPath, "", nil
	}
	return fcdPath, detPath, nil
}

// output 输出文件路径
func (ctx *Context) output(name string) string {
	return filepath.Join(ctx.runtimeConfig.All.Analysis.Dir, name)
}

// figure 图片文件路径
func (ctx *Context) figure(name string) string {
	return ctx.output(name + "." + ctx.runtimeConfig.All.Analysis.Format)
}

// Analyze 分析SUMO输出
// 功能：解析FCD（及检测器）输出，生成宏观量等值图、时空图、走走停停指标与基本图
// 算法说明：
// 1. 解析FCD得到展开后的轨迹集合
// 2. 全部车辆与每个类别各自计算Edie网格，绘制密度/流量/速度等值图并导出CSV
// 3. 时空散点图、单车报告、走走停停指标与基本图拟合与第2步并发执行
// 4. 检测器数据不可用时，基本图使用全部车辆的Edie网格单元作为样本
// 5. 配置了数据库时写入全部结果
func (ctx *Context) Analyze(c context.Context) error {
	a := ctx.runtimeConfig.All.Analysis
	fcdPath, detPath, err := ctx.inputs()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	set, err := fcd.NewParser(ctx.Ring(), ctx.classify).ParseFile(fcdPath)
	if err != nil {
		return err
	}
	classes := append([]string{fcd.ClassAll}, set.Classes()...)
	log.Infof("analyze %s: classes %v", fcdPath, classes)

	res := &results{}
	res.add("run", fcd.ClassAll, map[string]any{
		"job":      ctx.job,
		"scenario": ctx.scenario.Name(),
		"fcd":      fcdPath,
		"detector": detPath,
		"classes":  classes,
		"dx":       a.DX,
		"dt":       a.DT,
	})
	var wg sync.WaitGroup
	grids := make([]*edie.Grid, len(classes))
	for i, class := range classes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := ctx.analyzeClass(set, class, res)
			if err != nil {
				res.fail(fmt.Errorf("class %s: %w", class, err))
				return
			}
			grids[i] = g
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := ctx.analyzeTrajectories(set, res); err != nil {
			res.fail(fmt.Errorf("trajectories: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := ctx.analyzeWaves(set, res); err != nil {
			res.fail(fmt.Errorf("waves: %w", err))
		}
	}()
	wg.Wait()

	if err := ctx.analyzeFundamental(detPath, grids[0], res); err != nil {
		res.fail(fmt.Errorf("fundamental: %w", err))
	}
	if err := errors.Join(res.errs...); err != nil {
		return err
	}
	if err := ctx.save(c, res.records); err != nil {
		return err
	}
	log.Infof("analysis written to %s", a.Dir)
	return nil
}

// analyzeClass 某一类别车辆的Edie网格、等值图与CSV
func (ctx *Context) analyzeClass(set *fcd.Set, class string, res *results) (*edie.Grid, error) {
	a := ctx.runtimeConfig.All.Analysis
	g, err := edie.Compute(set, edie.Params{DX: a.DX, DT: a.DT, Class: class})
	if err != nil {
		return nil, err
	}
	ranges := g.Ranges()
	for _, q := range edie.Quantities {
		r := ranges[q]
		log.Infof("[%s] %s: %.2f to %.2f", class, q.Label(), r.Min, r.Max)
	}
	for _, q := range contourQuantities {
		if err := plotting.Contour(g, q, class, ctx.figure(fmt.Sprintf("%s_contour_%s", q, class))); err != nil {
			return nil, err
		}
	}
	cells := g.Cells()
	if err := store.WriteCells(ctx.output(fmt.Sprintf("edie_%s.csv", class)), cells); err != nil {
		return nil, err
	}
	res.add("ranges", class, lo.MapKeys(ranges, func(_ edie.Range, q edie.Quantity) string { return q.String() }))
	for _, cell := range cells {
		res.add("cell", class, cell)
	}
	return g, nil
}

// analyzeTrajectories 时空图与单车报告
func (ctx *Context) analyzeTrajectories(set *fcd.Set, res *results) error {
	overview, err := trajectory.Analyze(set)
	if err != nil {
		return err
	}
	for _, v := range trajectory.VehicleReport(set) {
		log.Debugf("%s (%s, %s): %.1f-%.1f s on %s, speed %.2f-%.2f m/s",
			v.ID, v.Type, v.Class, v.First, v.Last, v.Lane, v.SpeedMin, v.SpeedMax)
	}
	w := plotting.Window{
		Start:     ctx.clock.Begin(),
		End:       ctx.clock.End(),
		Length:    ctx.Ring().Length(),
		SpeedMin:  overview.SpeedMin,
		SpeedMax:  overview.SpeedMax,
		TimeTicks: ctx.clock.Bins(100),
	}
	if err := plotting.TimeSpace(trajectory.Points(set, 0), w, ctx.figure("time_space")); err != nil {
		return err
	}
	res.add("overview", fcd.ClassAll, overview)
	return nil
}

// analyzeWaves 走走停停指标
func (ctx *Context) analyzeWaves(set *fcd.Set, res *results) error {
	waves, err := trajectory.AnalyzeWaves(set, ctx.runtimeConfig.All.Analysis.StopSpeed)
	if err != nil {
		return err
	}
	for _, cw := range waves.Classes {
		log.Infof("[%s] %d vehicles: %.2f stops, %.1f s stopped, speed std %.2f m/s",
			cw.Class, cw.Vehicles, cw.Stops, cw.TimeStopped, cw.SpeedStd)
		res.add("waves", cw.Class, cw)
	}
	if err := store.WriteWaves(ctx.output("waves.csv"), waves.Vehicles); err != nil {
		return err
	}
	if err := store.WriteFleetStd(ctx.output("speed_std.csv"), waves.FleetStd); err != nil {
		return err
	}
	return plotting.SpeedStd(waves.FleetStd, ctx.figure("speed_std"))
}

// analyzeFundamental 基本图拟合
// 参数：detPath-检测器输出（为空时使用grid），grid-全部车辆的Edie网格
func (ctx *Context) analyzeFundamental(detPath string, grid *edie.Grid, res *results) error {
	var samples fundamental.Samples
	source := "detector"
	switch {
	case detPath != "":
		d, err := detector.ParseFile(detPath)
		if err != nil {
			return err
		}
		samples = fundamental.FromDetector(d)
	case grid != nil:
		samples = fundamental.FromGrid(grid)
		source = "edie"
	default:
		return fundamental.ErrNoData
	}
	fit, err := fundamental.FitGreenshields(samples)
	if err != nil {
		return err
	}
	summary, err := fundamental.Summarize(samples)
	if err != nil {
		return err
	}
	log.Infof("fundamental diagram from %s (%d samples): uf %.1f km/h, kj %.1f veh/km, qmax %.0f veh/h at k %.1f",
		source, samples.Len(), fit.Uf, fit.Kj, fit.Qmax, fit.Kcap)
	if err := store.WriteSamples(ctx.output("fundamental_samples.csv"), samples); err != nil {
		return err
	}
	if err := plotting.Fundamental(samples, fit, ctx.figure("fundamental_diagram")); err != nil {
		return err
	}
	res.add("fit", source, fit)
	res.add("summary", source, summary)
	return nil
}
