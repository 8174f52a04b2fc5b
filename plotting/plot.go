// 分析结果绘图：时空等值图、时空轨迹图、基本图与速度离散度曲线
package plotting

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fundamental"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/trajectory"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	observedColor = color.NRGBA{B: 255, A: 102}
	modelColor    = color.NRGBA{R: 220, A: 255}
	capacityColor = color.NRGBA{R: 230, G: 200, A: 255}
	dashes        = []vg.Length{vg.Points(4), vg.Points(3)}
)

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Add(plotter.NewGrid())
}

// format 由文件扩展名得到输出格式
func format(file string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
	switch ext {
	case "png", "svg", "pdf", "eps", "jpg", "jpeg", "tif", "tiff":
		return ext, nil
	}
	return "", fmt.Errorf("plotting: unsupported output format %q", file)
}

// save 把若干子图按一行排列绘制到同一张图中
func save(plots []*plot.Plot, width, height vg.Length, file string) error {
	ext, err := format(file)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("plotting: %w", err)
	}
	c, err := draw.NewFormattedCanvas(width, height, ext)
	if err != nil {
		return fmt.Errorf("plotting: %w", err)
	}
	dc := draw.New(c)
	if len(plots) == 1 {
		plots[0].Draw(dc)
	} else {
		tiles := draw.Tiles{
			Rows: 1, Cols: len(plots),
			PadX: vg.Millimeter * 6, PadY: vg.Millimeter * 4,
			PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
			PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		}
		canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
		for j, p := range plots {
			p.Draw(canvases[0][j])
		}
	}
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("plotting: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if _, err := c.WriteTo(bw); err != nil {
		return fmt.Errorf("plotting: write %s: %w", file, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("plotting: write %s: %w", file, err)
	}
	log.Debugf("saved %s", file)
	return nil
}

// gridXYZ 把Edie网格适配为plotter.GridXYZ，列为时间，行为空间
type gridXYZ struct {
	g *edie.Grid
	q edie.Quantity
}

func (x gridXYZ) Dims() (c, r int)   { return x.g.NT, x.g.NX }
func (x gridXYZ) Z(c, r int) float64 { return x.g.Value(x.q, c, r) }
func (x gridXYZ) X(c int) float64    { return x.g.TimeAt(c) + x.g.DT/2 }
func (x gridXYZ) Y(r int) float64    { return x.g.SpaceAt(r) + x.g.DX/2 }

// ColorRange 等值图的颜色范围
// 说明：速度取1%~99%分位数，其余量取[0, 99%分位数]
func ColorRange(g *edie.Grid, q edie.Quantity) edie.Range {
	r := g.ClipRange(q, 1, 99)
	if q != edie.Speed {
		r.Min = 0
	}
	if r.Max <= r.Min {
		r.Max = r.Min + 1
	}
	return r
}

// Contour 绘制宏观量的时空等值图
// 参数：g-Edie网格，q-宏观量，title-标题（如车辆类别），file-输出文件
func Contour(g *edie.Grid, q edie.Quantity, title, file string) error {
	r := ColorRange(g, q)
	hm := plotter.NewHeatMap(gridXYZ{g: g, q: q}, RedYellowGreen(paletteSize, q != edie.Speed))
	hm.Min, hm.Max = r.Min, r.Max
	colors := hm.Palette.Colors()
	hm.Underflow, hm.Overflow = colors[0], colors[len(colors)-1]
	hm.Rasterized = true

	p := plot.New()
	stylePlot(p)
	p.Title.Text = fmt.Sprintf("Space-Time Evolution of %s (%s)\ncolour range %.1f to %.1f", q.Label(), title, r.Min, r.Max)
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = "Space [m]"
	p.Add(hm)
	p.X.Min, p.X.Max = g.T0, g.TimeAt(g.NT)
	p.Y.Min, p.Y.Max = 0, g.SpaceAt(g.NX)
	return save([]*plot.Plot{p}, 24*vg.Centimeter, 16*vg.Centimeter, file)
}

// Window 时空图的坐标范围
type Window struct {
	Start, End float64 // 仿真时间窗口（秒）
	Length     float64 // 道路长度（米）
	SpeedMin   float64 // 用于标题的速度范围（米/秒）
	SpeedMax   float64 // 颜色上限（米/秒），颜色下限固定为0
	TimeTicks  []float64
}

// TimeSpace 绘制时空轨迹散点图，颜色表示速度
func TimeSpace(points []trajectory.Point, w Window, file string) error {
	if len(points) == 0 {
		return fmt.Errorf("plotting: no points for %s", file)
	}
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X, xys[i].Y = pt.T, pt.X
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("plotting: %w", err)
	}
	pal := RedYellowGreen(paletteSize, false).(ramp)
	vmax := w.SpeedMax
	if vmax <= 0 {
		vmax = 1
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c := color.NRGBAModel.Convert(pal.at(points[i].V / vmax)).(color.NRGBA)
		c.A = 153
		return draw.GlyphStyle{Color: c, Radius: vg.Points(0.8), Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	stylePlot(p)
	p.Title.Text = fmt.Sprintf("Vehicle Trajectories in Ring Road\nSpeed Range: %.1f - %.1f m/s (red = stopped, green = free flow)", w.SpeedMin, w.SpeedMax)
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = "Position [m]"
	p.Add(s)
	p.X.Min, p.X.Max = w.Start, w.End
	p.Y.Min, p.Y.Max = 0, w.Length
	if len(w.TimeTicks) > 0 {
		ticks := make([]plot.Tick, len(w.TimeTicks))
		for i, t := range w.TimeTicks {
			ticks[i] = plot.Tick{Value: t, Label: fmt.Sprintf("%.0f", t)}
		}
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
	}
	return save([]*plot.Plot{p}, 30*vg.Centimeter, 20*vg.Centimeter, file)
}

func scatter(xs, ys []float64) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i].X, xys[i].Y = xs[i], ys[i]
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = observedColor
	s.GlyphStyle.Radius = vg.Points(2.5)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	return s, nil
}

func line(xs, ys []float64, c color.Color, dashed bool) (*plotter.Line, error) {
	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i].X, xys[i].Y = xs[i], ys[i]
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(2)
	if dashed {
		l.LineStyle.Width = vg.Points(1)
		l.LineStyle.Dashes = dashes
	}
	return l, nil
}

func point(x, y float64) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
	if err != nil {
		return nil, err
	}
	s.GlyphStyle = draw.GlyphStyle{Color: capacityColor, Radius: vg.Points(6), Shape: draw.PyramidGlyph{}}
	return s, nil
}

// panel 基本图的一个子图
type panel struct {
	title, xLabel, yLabel string
	xs, ys                []float64 // 观测
	cx, cy                []float64 // 模型曲线
	px, py                float64   // 通行能力点或自由流速度参考
	xMax, yMax            float64
}

func (pn panel) plot() (*plot.Plot, error) {
	p := plot.New()
	stylePlot(p)
	p.Title.Text = pn.title
	p.X.Label.Text = pn.xLabel
	p.Y.Label.Text = pn.yLabel
	obs, err := scatter(pn.xs, pn.ys)
	if err != nil {
		return nil, err
	}
	model, err := line(pn.cx, pn.cy, modelColor, false)
	if err != nil {
		return nil, err
	}
	capacity, err := point(pn.px, pn.py)
	if err != nil {
		return nil, err
	}
	h, err := line([]float64{0, pn.xMax}, []float64{pn.py, pn.py}, capacityColor, true)
	if err != nil {
		return nil, err
	}
	v, err := line([]float64{pn.px, pn.px}, []float64{0, pn.yMax}, capacityColor, true)
	if err != nil {
		return nil, err
	}
	p.Add(obs, model, h, v, capacity)
	p.Legend.Add("Observed", obs)
	p.Legend.Add("Greenshields", model)
	p.Legend.Add("Capacity", capacity)
	p.Legend.Top = true
	p.X.Min, p.X.Max = 0, pn.xMax
	p.Y.Min, p.Y.Max = 0, pn.yMax
	return p, nil
}

// Fundamental 绘制基本图：流量-密度、速度-流量、速度-密度三个子图
// 参数：s-观测样本，f-Greenshields拟合结果，file-输出文件
func Fundamental(s fundamental.Samples, f fundamental.Fit, file string) error {
	const margin = 1.1
	c := f.Curve(100)
	kMax := math.Max(f.Kj, maxOf(s.Density)) * margin
	qMax := math.Max(f.Qmax, maxOf(s.Flow)) * margin
	uMax := math.Max(f.Uf, maxOf(s.Speed)) * margin
	panels := []panel{
		{
			title:  fmt.Sprintf("Flow-Density (kcap=%.0f, qmax=%.0f)", f.Kcap, f.Qmax),
			xLabel: "Density k [veh/km]", yLabel: "Flow q [veh/h]",
			xs: s.Density, ys: s.Flow, cx: c.K, cy: c.Q,
			px: f.Kcap, py: f.Qmax, xMax: kMax, yMax: qMax,
		},
		{
			title:  fmt.Sprintf("Speed-Flow (ucap=%.0f)", f.Ucap),
			xLabel: "Flow q [veh/h]", yLabel: "Space-Mean Speed u [km/h]",
			xs: s.Flow, ys: s.Speed, cx: c.Q, cy: c.U,
			px: f.Qmax, py: f.Ucap, xMax: qMax, yMax: uMax,
		},
		{
			title:  fmt.Sprintf("Speed-Density (uf=%.0f, kj=%.0f)", f.Uf, f.Kj),
			xLabel: "Density k [veh/km]", yLabel: "Space-Mean Speed u [km/h]",
			xs: s.Density, ys: s.Speed, cx: c.K, cy: c.U,
			px: f.Kcap, py: f.Uf, xMax: kMax, yMax: uMax,
		},
	}
	plots := make([]*plot.Plot, len(panels))
	for i, pn := range panels {
		p, err := pn.plot()
		if err != nil {
			return fmt.Errorf("plotting: %w", err)
		}
		plots[i] = p
	}
	return save(plots, 45*vg.Centimeter, 15*vg.Centimeter, file)
}

// SpeedStd 绘制全体车辆速度标准差随时间的变化
func SpeedStd(series []trajectory.StdPoint, file string) error {
	if len(series) == 0 {
		return fmt.Errorf("plotting: empty series for %s", file)
	}
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, pt := range series {
		xs[i], ys[i] = pt.T, pt.Std
	}
	l, err := line(xs, ys, modelColor, false)
	if err != nil {
		return fmt.Errorf("plotting: %w", err)
	}
	p := plot.New()
	stylePlot(p)
	p.Title.Text = "Fleet Speed Standard Deviation"
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = "Speed std [m/s]"
	p.Add(l)
	p.Y.Min = 0
	return save([]*plot.Plot{p}, 24*vg.Centimeter, 12*vg.Centimeter, file)
}

func maxOf(x []float64) float64 {
	m := 0.
	for _, v := range x {
		m = math.Max(m, v)
	}
	return m
}
