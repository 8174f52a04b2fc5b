package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

// Model 智能驾驶模型(IDM)
// 功能：按车辆类型参数求IDM加速度，用于稳态与稳定性的解析分析
// 说明：不做时间推进，车辆运动由SUMO仿真
type Model struct {
	maxA          float64 // 最大加速度
	usualBrakingA float64 // 常用制动加速度（负值）
	maxBrakingA   float64 // 最大制动加速度（负值）
	maxV          float64 // 期望速度
	minGap        float64 // 最小车距
	headway       float64 // 安全车头时距
	delta         float64 // 加速度指数
	length        float64 // 车长
}

// NewModel 由车辆类型创建IDM模型
// 参数：t-车辆类型
// 返回：模型实例，参数不合法时返回错误
func NewModel(t config.VType) (*Model, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	t = WithDefaults(t)
	return &Model{
		maxA:          t.Accel,
		usualBrakingA: -t.Decel,
		maxBrakingA:   -t.EmergencyDecel,
		maxV:          t.MaxSpeed,
		minGap:        t.MinGap,
		headway:       t.Tau,
		delta:         t.Delta,
		length:        t.Length,
	}, nil
}

// Length 车长
func (m *Model) Length() float64 {
	return m.length
}

// raw IDM加速度（不限幅）
func (m *Model) raw(selfV, aheadV, distance float64) float64 {
	if distance <= 0 {
		return -mathutil.INF
	}
	// https://en.wikipedia.org/wiki/Intelligent_driver_model
	sStar := m.minGap + math.Max(
		0,
		selfV*m.headway+selfV*(selfV-aheadV)/2/math.Sqrt(-m.usualBrakingA*m.maxA),
	)
	return m.maxA * (1 - math.Pow(selfV/m.maxV, m.delta) - math.Pow(sStar/distance, 2))
}

// Acceleration 跟车加速度
// 功能：实现IDM跟车逻辑
// 参数：selfV-本车速度，aheadV-前车速度，distance-净车距
// 返回：加速度（米/秒²）
// 算法说明：
// 1. 车距小于等于0视为碰撞，返回最大制动
// 2. 期望车距：s* = minGap + max(0, v*headway + v*(v-v_ahead)/(2*sqrt(a*b)))
// 3. 加速度：a = maxA * (1 - (v/maxV)^delta - (s*/distance)^2)
// 4. 限制在[最大制动, 最大加速度]范围内
func (m *Model) Acceleration(selfV, aheadV, distance float64) float64 {
	return lo.Clamp(m.raw(selfV, aheadV, distance), m.maxBrakingA, m.maxA)
}

// EquilibriumGap 给定速度下的稳态车距
// 说明：s_e(v) = (minGap + v*headway) / sqrt(1-(v/maxV)^delta)，v>=maxV时为无穷大
func (m *Model) EquilibriumGap(v float64) float64 {
	if v >= m.maxV {
		return mathutil.INF
	}
	v = math.Max(v, 0)
	return (m.minGap + v*m.headway) / math.Sqrt(1-math.Pow(v/m.maxV, m.delta))
}

// EquilibriumSpeed 给定车距下的稳态速度
// 功能：二分求解 raw(v, v, gap) = 0
// 说明：gap不大于minGap时车辆无法起步，稳态速度为0
func (m *Model) EquilibriumSpeed(gap float64) float64 {
	if gap <= m.minGap {
		return 0
	}
	low, high := 0.0, m.maxV
	for high-low > 1e-9 {
		mid := (low + high) / 2
		if m.raw(mid, mid, gap) > 0 {
			low = mid
		} else {
			high = mid
		}
	}
	return (low + high) / 2
}
