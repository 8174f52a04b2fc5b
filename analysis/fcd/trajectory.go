package fcd

import (
	"errors"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

// ErrNoData 输入中没有任何车辆样本
var ErrNoData = errors.New("fcd: no vehicle samples")

// 类别名
const (
	ClassAll = "all"
)

// Trajectory 单车轨迹
// 功能：按时间顺序保存一辆车的采样点
// 说明：Pos为跨圈展开后的连续坐标，单调不减（车辆不倒车）
type Trajectory struct {
	ID    string
	Type  string
	Class string
	Time  []float64 // 秒
	Pos   []float64 // 米，展开坐标
	Speed []float64 // 米/秒
	Lane  []string
}

// Len 采样点数
func (t *Trajectory) Len() int {
	return len(t.Time)
}

func (t *Trajectory) append(time, pos, speed float64, lane string) {
	t.Time = append(t.Time, time)
	t.Pos = append(t.Pos, pos)
	t.Speed = append(t.Speed, speed)
	t.Lane = append(t.Lane, lane)
}

// Set 一次仿真的全部轨迹
type Set struct {
	Trajectories []*Trajectory // 按车辆ID排序
	RingLength   float64
}

// Filter 按类别筛选轨迹
// 参数：class-类别，空串或"all"表示全部
func (s *Set) Filter(class string) *Set {
	if class == "" || class == ClassAll {
		return s
	}
	return &Set{
		Trajectories: lo.Filter(s.Trajectories, func(t *Trajectory, _ int) bool { return t.Class == class }),
		RingLength:   s.RingLength,
	}
}

// Classes 出现过的类别，按字典序
func (s *Set) Classes() []string {
	classes := lo.Uniq(lo.Map(s.Trajectories, func(t *Trajectory, _ int) string { return t.Class }))
	sort.Strings(classes)
	return classes
}

// TimeRange 全部样本的时间范围
func (s *Set) TimeRange() (tMin, tMax float64, ok bool) {
	for _, t := range s.Trajectories {
		if t.Len() == 0 {
			continue
		}
		if !ok {
			tMin, tMax, ok = t.Time[0], t.Time[t.Len()-1], true
			continue
		}
		tMin = min(tMin, t.Time[0])
		tMax = max(tMax, t.Time[t.Len()-1])
	}
	return
}

// Samples 全部样本数
func (s *Set) Samples() int {
	return lo.SumBy(s.Trajectories, func(t *Trajectory) int { return t.Len() })
}

// Classifier 按类型ID把车辆归类
// 说明：规则按顺序匹配，类型ID包含规则子串即命中
type Classifier struct {
	rules []config.ClassRule
	def   string
}

// NewClassifier 创建分类器
func NewClassifier(rules []config.ClassRule, def string) *Classifier {
	return &Classifier{rules: rules, def: def}
}

// Classify 返回类型ID对应的类别
func (c *Classifier) Classify(typ string) string {
	for _, r := range c.rules {
		if strings.Contains(typ, r.Match) {
			return r.Class
		}
	}
	return c.def
}

func sortByID(ts []*Trajectory) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
