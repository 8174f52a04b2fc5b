package entity

import (
	"github.com/tsinghua-fib-lab/ringroad-sim/clock"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

// ITaskContext 任务上下文的依赖倒置
// 说明：服务与分析流程只通过该接口访问任务级对象，避免与task包循环依赖
type ITaskContext interface {
	Clock() *clock.Clock                  // 仿真时间窗口
	Ring() *road.Ring                     // 环形道路
	VTypes() map[string]config.VType      // 补全缺省值后的车辆类型表
	RuntimeConfig() *config.RuntimeConfig // 补全默认值后的配置
}
