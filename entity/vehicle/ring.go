package vehicle

import (
	"fmt"
)

const diffStep = 1e-4 // 数值微分步长

// Equilibrium 均质环路稳态与线性弦稳定性
type Equilibrium struct {
	Count      int     `bson:"count" json:"count"`             // 车辆数
	RingLength float64 `bson:"ring_length" json:"ring_length"` // 环路长度（米）
	Gap        float64 `bson:"gap" json:"gap"`                 // 稳态净车距（米）
	Speed      float64 `bson:"speed" json:"speed"`             // 稳态速度（米/秒）
	Density    float64 `bson:"density" json:"density"`         // 密度（辆/公里）
	Flow       float64 `bson:"flow" json:"flow"`               // 流量（辆/小时）
	Fs         float64 `bson:"f_s" json:"f_s"`                 // ∂a/∂s
	Fdv        float64 `bson:"f_dv" json:"f_dv"`               // ∂a/∂Δv，Δv = v_lead - v
	Fv         float64 `bson:"f_v" json:"f_v"`                 // ∂a/∂v
	Criterion  float64 `bson:"criterion" json:"criterion"`     // f_v²/2 - f_Δv·f_v - f_s
	Stable     bool    `bson:"stable" json:"stable"`           // 是否弦稳定
}

// partials 以(s, Δv, v)为自变量的偏导数，在Δv=0的稳态点处中心差分
func (m *Model) partials(gap, v float64) (fs, fdv, fv float64) {
	f := func(s, dv, v float64) float64 { return m.raw(v, v+dv, s) }
	h := diffStep
	fs = (f(gap+h, 0, v) - f(gap-h, 0, v)) / (2 * h)
	fdv = (f(gap, h, v) - f(gap, -h, v)) / (2 * h)
	if v > h {
		fv = (f(gap, 0, v+h) - f(gap, 0, v-h)) / (2 * h)
	} else {
		fv = (f(gap, 0, v+h) - f(gap, 0, v)) / h
	}
	return
}

// Ring 均质环路的稳态与弦稳定性
// 功能：count辆同类型车辆均匀分布在长度为ringLength的环路上时，求稳态并判断能否抑制走停波
// 参数：ringLength-环路长度（米），count-车辆数
// 返回：稳态结果；车辆放不下时返回错误
// 算法说明：
// 1. 稳态净车距 gap = ringLength/count - 车长
// 2. 二分求稳态速度
// 3. 数值求偏导 f_s、f_Δv、f_v
// 4. Wilson判据：f_v²/2 - f_Δv·f_v - f_s > 0 时弦稳定，小扰动沿车队向上游传播时衰减
func (m *Model) Ring(ringLength float64, count int) (Equilibrium, error) {
	if count <= 0 {
		return Equilibrium{}, fmt.Errorf("vehicle: ring needs at least one vehicle, got %d", count)
	}
	gap := ringLength/float64(count) - m.length
	if gap <= 0 {
		return Equilibrium{}, fmt.Errorf("vehicle: %d vehicles of length %.2f do not fit on a %.2f m ring", count, m.length, ringLength)
	}
	v := m.EquilibriumSpeed(gap)
	fs, fdv, fv := m.partials(gap, v)
	density := float64(count) / ringLength * 1000
	eq := Equilibrium{
		Count:      count,
		RingLength: ringLength,
		Gap:        gap,
		Speed:      v,
		Density:    density,
		Flow:       density * v * 3.6,
		Fs:         fs,
		Fdv:        fdv,
		Fv:         fv,
		Criterion:  fv*fv/2 - fdv*fv - fs,
	}
	eq.Stable = eq.Criterion > 0
	log.Debugf("ring %.1fm x %d: gap %.2f v %.2f criterion %.5f", ringLength, count, gap, v, eq.Criterion)
	return eq, nil
}

// FDPoint 稳态基本图上的一点
type FDPoint struct {
	Density float64 // 辆/公里
	Speed   float64 // 公里/小时
	Flow    float64 // 辆/小时
}

// FundamentalDiagram 稳态基本图
// 功能：在(0, maxDensity]上等距取n个密度，求对应的稳态速度与流量
// 说明：车辆放不下（净车距非正）的密度被跳过
func (m *Model) FundamentalDiagram(n int, maxDensity float64) []FDPoint {
	points := make([]FDPoint, 0, n)
	for i := 1; i <= n; i++ {
		k := maxDensity * float64(i) / float64(n)
		gap := 1000/k - m.length
		if gap <= 0 {
			continue
		}
		v := m.EquilibriumSpeed(gap) * 3.6
		points = append(points, FDPoint{Density: k, Speed: v, Flow: k * v})
	}
	return points
}
