// 随机数引擎，包装了golang.org/x/exp/rand，用于场景生成时的车辆类型交错与位置扰动
package randengine

import (
	"flag"
	"fmt"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数，同一种子生成同一组场景文件
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下批量生成不同的随机场景
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// DiscreteDistribution 按给定权重抽取下标
// 功能：根据权重数组生成离散分布的随机数
// 参数：weight-权重数组，每个元素表示对应索引的概率权重
// 返回：随机生成的索引值（0到len(weight)-1），总权重非正时返回错误
// 算法说明：
// 1. 计算总权重
// 2. 在[0, 总权重)范围内生成随机数
// 3. 累积权重直到超过随机数，返回对应索引
func (e *Engine) DiscreteDistribution(weight []float64) (int, error) {
	total := .0
	for _, w := range weight {
		total += w
	}
	if total <= 0 {
		return -1, fmt.Errorf("randengine: DiscreteDistribution: non-positive total weight %f", total)
	}
	random := total * e.Float64()
	sum := 0.
	last := -1
	for i, w := range weight {
		if w <= 0 {
			continue
		}
		sum += w
		last = i
		if sum > random {
			return i, nil
		}
	}
	// 浮点累积误差时落到最后一个有效项
	return last, nil
}

// Uniform 生成[lo, hi)内的均匀随机数
func (e *Engine) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*e.Float64()
}
