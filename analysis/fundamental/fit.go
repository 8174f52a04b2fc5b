// Greenshields基本图拟合与宏观统计量
package fundamental

import (
	"errors"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"gonum.org/v1/gonum/stat"
)

// ErrNoData 没有样本
var ErrNoData = errors.New("fundamental: no samples")

const (
	minJamDensity = 50.  // veh/km
	maxJamDensity = 200. // veh/km
	curvePoints   = 100
)

// Fit Greenshields模型拟合结果
type Fit struct {
	Uf        float64 `json:"uf" bson:"uf"`                 // 自由流速度 km/h
	Kj        float64 `json:"kj" bson:"kj"`                 // 阻塞密度 veh/km
	KjInitial float64 `json:"kj_initial" bson:"kj_initial"` // 拟合初值
	Fitted    bool    `json:"fitted" bson:"fitted"`         // 拟合是否有效，否则Kj取初值
	Qmax      float64 `json:"qmax" bson:"qmax"`             // 通行能力 veh/h
	Kcap      float64 `json:"kcap" bson:"kcap"`             // 临界密度 veh/km
	Ucap      float64 `json:"ucap" bson:"ucap"`             // 临界速度 km/h
}

// Speed 模型速度 u(k) = uf(1-k/kj)
func (f Fit) Speed(k float64) float64 {
	return f.Uf * (1 - k/f.Kj)
}

// Curve 模型曲线
type Curve struct {
	K []float64
	U []float64
	Q []float64
}

// Curve 生成k∈[0, kj]上等间距的n个点
func (f Fit) Curve(n int) Curve {
	c := Curve{
		K: make([]float64, n),
		U: make([]float64, n),
		Q: make([]float64, n),
	}
	for i := range n {
		k := f.Kj * float64(i) / float64(max(n-1, 1))
		c.K[i] = k
		c.U[i] = f.Speed(k)
		c.Q[i] = k * c.U[i]
	}
	return c
}

func percentile(x []float64, p float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return edie.Percentile(sorted, p)
}

// FitGreenshields 拟合Greenshields模型
// 功能：估计自由流速度uf与阻塞密度kj，并计算通行能力点
// 参数：s-样本
// 返回：拟合结果；无样本时返回ErrNoData
// 算法说明：
// 1. uf取密度低于10%分位数的样本中的最大速度，没有这样的样本时取全部样本最大速度
// 2. kj初值为最大密度的1.1倍
// 3. 固定uf后，u = uf(1-k/kj) 可改写为 uf-u = (1/kj)·(uf·k)，对其做过原点的最小二乘回归得到1/kj
// 4. kj限制在[50, 200]内；回归斜率非正或非有限时保留初值
// 5. 在100个点的模型曲线上取流量最大点作为通行能力点
func FitGreenshields(s Samples) (Fit, error) {
	if s.Len() == 0 {
		return Fit{}, ErrNoData
	}
	p10 := percentile(s.Density, 0.1)
	low := lo.Filter(lo.Range(s.Len()), func(i int, _ int) bool { return s.Density[i] < p10 })
	var f Fit
	if len(low) > 0 {
		f.Uf = lo.Max(lo.Map(low, func(i int, _ int) float64 { return s.Speed[i] }))
	} else {
		f.Uf = lo.Max(s.Speed)
	}
	f.KjInitial = lo.Max(s.Density) * 1.1
	f.Kj = f.KjInitial

	x := lo.Map(s.Density, func(k float64, _ int) float64 { return f.Uf * k })
	y := lo.Map(s.Speed, func(u float64, _ int) float64 { return f.Uf - u })
	_, beta := stat.LinearRegression(x, y, nil, true)
	if beta > 0 && !math.IsInf(beta, 0) && !math.IsNaN(beta) {
		f.Kj = lo.Clamp(1/beta, minJamDensity, maxJamDensity)
		f.Fitted = true
	} else {
		log.Warnf("degenerate Greenshields fit (slope %v), keep kj=%.2f", beta, f.Kj)
	}

	c := f.Curve(curvePoints)
	best := 0
	for i, q := range c.Q {
		if q > c.Q[best] {
			best = i
		}
	}
	f.Qmax, f.Kcap, f.Ucap = c.Q[best], c.K[best], c.U[best]
	log.Debugf("uf=%.2f km/h kj=%.2f veh/km qmax=%.0f veh/h", f.Uf, f.Kj, f.Qmax)
	return f, nil
}

// Summary 宏观统计量
type Summary struct {
	Samples       int     `json:"samples" bson:"samples"`
	MeanSpeed     float64 `json:"mean_speed" bson:"mean_speed"` // 米/秒
	MeanFlow      float64 `json:"mean_flow" bson:"mean_flow"`
	MeanDensity   float64 `json:"mean_density" bson:"mean_density"`
	MaxFlow       float64 `json:"max_flow" bson:"max_flow"`
	MaxDensity    float64 `json:"max_density" bson:"max_density"`
	FreeFlowSpeed float64 `json:"free_flow_speed" bson:"free_flow_speed"` // 米/秒，最大速度
}

// Summarize 计算宏观统计量
func Summarize(s Samples) (Summary, error) {
	if s.Len() == 0 {
		return Summary{}, ErrNoData
	}
	speed := stats.Float64Data(lo.Map(s.Speed, func(u float64, _ int) float64 { return u / 3.6 }))
	flow := stats.Float64Data(s.Flow)
	density := stats.Float64Data(s.Density)
	out := Summary{Samples: s.Len()}
	var err error
	if out.MeanSpeed, err = speed.Mean(); err != nil {
		return Summary{}, err
	}
	if out.MeanFlow, err = flow.Mean(); err != nil {
		return Summary{}, err
	}
	if out.MeanDensity, err = density.Mean(); err != nil {
		return Summary{}, err
	}
	if out.MaxFlow, err = flow.Max(); err != nil {
		return Summary{}, err
	}
	if out.MaxDensity, err = density.Max(); err != nil {
		return Summary{}, err
	}
	if out.FreeFlowSpeed, err = speed.Max(); err != nil {
		return Summary{}, err
	}
	return out, nil
}
