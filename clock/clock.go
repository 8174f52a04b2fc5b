package clock

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

// Clock 仿真时间窗口
// 功能：把步数形式的时间配置换算为SUMO使用的秒，并为时空分析提供时间分箱
// 说明：模拟区间为[START_STEP, END_STEP)，每步DT秒
type Clock struct {
	DT         float64 // 每步时间间隔（秒）
	START_STEP int32   // 起始步
	END_STEP   int32   // 结束步
}

// New 根据配置创建时钟
// 功能：校验时间窗口配置并计算起止步
// 参数：stepConfig-控制步配置
// 返回：时钟实例；Interval或Total非正时返回错误
func New(stepConfig config.ControlStep) (*Clock, error) {
	if stepConfig.Interval <= 0 {
		return nil, fmt.Errorf("clock: step interval must be positive, got %v", stepConfig.Interval)
	}
	if stepConfig.Total <= 0 {
		return nil, fmt.Errorf("clock: total steps must be positive, got %d", stepConfig.Total)
	}
	return &Clock{
		DT:         stepConfig.Interval,
		START_STEP: stepConfig.Start,
		END_STEP:   stepConfig.Start + stepConfig.Total,
	}, nil
}

// Begin 开始时间（秒）
func (c *Clock) Begin() float64 {
	return float64(c.START_STEP) * c.DT
}

// End 结束时间（秒）
func (c *Clock) End() float64 {
	return float64(c.END_STEP) * c.DT
}

// Steps 总步数
func (c *Clock) Steps() int32 {
	return c.END_STEP - c.START_STEP
}

// Bins 按给定宽度切分时间窗口
// 功能：返回覆盖[Begin, End]的分箱边界
// 参数：width-分箱宽度（秒）
// 返回：分箱边界，首项为Begin，末项不小于End
// 说明：最后一个箱可能超出End，用于时空图的时间刻度
func (c *Clock) Bins(width float64) []float64 {
	if width <= 0 {
		return nil
	}
	begin, end := c.Begin(), c.End()
	n := int(math.Ceil((end-begin)/width-1e-9)) + 1
	bins := make([]float64, n)
	for i := range bins {
		bins[i] = begin + float64(i)*width
	}
	return bins
}

// String 获取结束时间的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取仿真时长的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.End() - c.Begin()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
