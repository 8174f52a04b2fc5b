package edie

import (
	"fmt"
	"math"
	"sort"
)

// Quantity 网格上的宏观交通量
type Quantity int

const (
	Density     Quantity = iota // 密度 veh/km
	Flow                        // 流量 veh/h，TTD/面积
	Speed                       // 空间平均速度 km/h
	PassageFlow                 // 断面通过流量 veh/h，越过单元左边界的次数/dt
)

// Quantities 全部宏观量
var Quantities = []Quantity{Density, Flow, Speed, PassageFlow}

func (q Quantity) String() string {
	switch q {
	case Density:
		return "density"
	case Flow:
		return "flow"
	case Speed:
		return "speed"
	case PassageFlow:
		return "passage_flow"
	}
	return fmt.Sprintf("quantity(%d)", int(q))
}

// Label 带单位的坐标轴标签
func (q Quantity) Label() string {
	switch q {
	case Density:
		return "Density [veh/km]"
	case Flow:
		return "Flow [veh/h]"
	case Speed:
		return "Speed [km/h]"
	case PassageFlow:
		return "Passage flow [veh/h]"
	}
	return q.String()
}

// Range 数值范围
type Range struct {
	Min float64 `json:"min" bson:"min"`
	Max float64 `json:"max" bson:"max"`
}

// Grid Edie时空网格
// 功能：累计每个dx×dt单元内的总停留时间(TTS)、总行驶距离(TTD)与断面通过次数
// 说明：下标[i][j]中i为时间单元，j为空间单元；时间单元i覆盖[T0+i·DT, T0+(i+1)·DT)
type Grid struct {
	DX, DT   float64
	T0       float64
	NT, NX   int
	TTS      [][]float64 // 秒
	TTD      [][]float64 // 米
	Passages [][]float64 // 次
	Vehicles int
}

func newGrid(dx, dt, t0 float64, nt, nx int) *Grid {
	alloc := func() [][]float64 {
		m := make([][]float64, nt)
		for i := range m {
			m[i] = make([]float64, nx)
		}
		return m
	}
	return &Grid{
		DX: dx, DT: dt, T0: t0, NT: nt, NX: nx,
		TTS: alloc(), TTD: alloc(), Passages: alloc(),
	}
}

// add 累加另一网格（形状必须一致）
func (g *Grid) add(o *Grid) {
	for i := range g.NT {
		for j := range g.NX {
			g.TTS[i][j] += o.TTS[i][j]
			g.TTD[i][j] += o.TTD[i][j]
			g.Passages[i][j] += o.Passages[i][j]
		}
	}
	g.Vehicles += o.Vehicles
}

// TimeAt 时间单元起点
func (g *Grid) TimeAt(i int) float64 {
	return g.T0 + float64(i)*g.DT
}

// SpaceAt 空间单元起点
func (g *Grid) SpaceAt(j int) float64 {
	return float64(j) * g.DX
}

// Value 单元(i, j)的宏观量
// 算法说明：面积A = dx·dt
// 1. 密度 k = TTS/A ×1000 (veh/km)
// 2. 流量 q = TTD/A ×3600 (veh/h)
// 3. 速度 v = TTD/TTS ×3.6 (km/h)，TTS为0时取0
// 4. 通过流量 n/dt ×3600 (veh/h)
func (g *Grid) Value(q Quantity, i, j int) float64 {
	area := g.DX * g.DT
	switch q {
	case Density:
		return g.TTS[i][j] / area * 1000
	case Flow:
		return g.TTD[i][j] / area * 3600
	case Speed:
		if g.TTS[i][j] <= 0 {
			return 0
		}
		return g.TTD[i][j] / g.TTS[i][j] * 3.6
	case PassageFlow:
		return g.Passages[i][j] / g.DT * 3600
	}
	return math.NaN()
}

// Values 宏观量的全部单元值（展平）
func (g *Grid) Values(q Quantity) []float64 {
	v := make([]float64, 0, g.NT*g.NX)
	for i := range g.NT {
		for j := range g.NX {
			v = append(v, g.Value(q, i, j))
		}
	}
	return v
}

// Ranges 各宏观量的最小最大值
func (g *Grid) Ranges() map[Quantity]Range {
	out := make(map[Quantity]Range, len(Quantities))
	for _, q := range Quantities {
		v := g.Values(q)
		if len(v) == 0 {
			continue
		}
		r := Range{Min: v[0], Max: v[0]}
		for _, x := range v[1:] {
			r.Min = min(r.Min, x)
			r.Max = max(r.Max, x)
		}
		out[q] = r
	}
	return out
}

// ClipRange 按百分位裁剪的颜色范围
// 参数：q-宏观量，lo/hi-百分位（0~100）
// 返回：[lo百分位值, hi百分位值]
func (g *Grid) ClipRange(q Quantity, lo, hi float64) Range {
	v := g.Values(q)
	if len(v) == 0 {
		return Range{}
	}
	sort.Float64s(v)
	return Range{
		Min: Percentile(v, lo/100),
		Max: Percentile(v, hi/100),
	}
}

// Percentile 升序样本的p分位数（p∈[0,1]）
// 算法说明：h=(n-1)·p，在x[floor(h)]与x[ceil(h)]之间线性插值；空样本返回NaN
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * min(max(p, 0), 1)
	i := int(math.Floor(h))
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}

// Cell 单元的全部宏观量，用于导出
type Cell struct {
	Time        float64 `json:"t" bson:"t"`
	Space       float64 `json:"x" bson:"x"`
	TTS         float64 `json:"tts" bson:"tts"`
	TTD         float64 `json:"ttd" bson:"ttd"`
	Density     float64 `json:"density" bson:"density"`
	Flow        float64 `json:"flow" bson:"flow"`
	Speed       float64 `json:"speed" bson:"speed"`
	PassageFlow float64 `json:"passage_flow" bson:"passage_flow"`
}

// Cells 按时间、空间顺序展开的全部单元
func (g *Grid) Cells() []Cell {
	cells := make([]Cell, 0, g.NT*g.NX)
	for i := range g.NT {
		for j := range g.NX {
			cells = append(cells, Cell{
				Time:        g.TimeAt(i),
				Space:       g.SpaceAt(j),
				TTS:         g.TTS[i][j],
				TTD:         g.TTD[i][j],
				Density:     g.Value(Density, i, j),
				Flow:        g.Value(Flow, i, j),
				Speed:       g.Value(Speed, i, j),
				PassageFlow: g.Value(PassageFlow, i, j),
			})
		}
	}
	return cells
}
