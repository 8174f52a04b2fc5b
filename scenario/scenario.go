package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/clock"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/randengine"
)

const defaultName = "ring"

// Scenario 环路仿真场景
// 功能：持有校验后的环路、车辆类型表与时间窗口，负责生成SUMO输入文件
type Scenario struct {
	name     string
	ring     *road.Ring
	types    map[string]config.VType
	order    []string // 车辆类型按配置顺序
	groups   []config.Group
	flows    []config.Flow
	mixed    bool
	jitter   float64 // 出发位置随机后移上限（米）
	clock    *clock.Clock
	detector *config.Detector
	rng      *randengine.Engine
	seed     uint64
}

// New 根据配置创建场景
// 功能：校验环路、车辆类型、车辆分组与流量定义
// 参数：c-场景配置
// 返回：场景实例或第一个校验错误
// 算法说明：
// 1. 环路：边非空、长度为正、ID唯一
// 2. 车辆类型：逐项校验物理参数，ID唯一
// 3. 分组与流量：引用的类型必须存在，数量为正
// 4. 检测器：所在车道必须属于环路，位置不超过车道长度
func New(c config.Scenario) (*Scenario, error) {
	ring, err := road.NewRing(c.Edges)
	if err != nil {
		return nil, err
	}
	types, err := vehicle.ValidateTable(c.VTypes)
	if err != nil {
		return nil, err
	}
	ck, err := clock.New(c.Step)
	if err != nil {
		return nil, err
	}
	for _, g := range c.Groups {
		if _, ok := types[g.Type]; !ok {
			return nil, fmt.Errorf("scenario: group references unknown vtype %s", g.Type)
		}
		if g.Count <= 0 {
			return nil, fmt.Errorf("scenario: group %s has non-positive count %d", g.Type, g.Count)
		}
	}
	flowIDs := make(map[string]struct{})
	for _, f := range c.Flows {
		if _, ok := types[f.Type]; !ok {
			return nil, fmt.Errorf("scenario: flow %s references unknown vtype %s", f.ID, f.Type)
		}
		if _, ok := flowIDs[f.ID]; ok || f.ID == "" {
			return nil, fmt.Errorf("scenario: flow id %q is empty or duplicated", f.ID)
		}
		flowIDs[f.ID] = struct{}{}
		if f.End <= f.Begin {
			return nil, fmt.Errorf("scenario: flow %s ends before it begins", f.ID)
		}
		if (f.Number > 0) == (f.VehsPerHour > 0) {
			return nil, fmt.Errorf("scenario: flow %s needs exactly one of number and vehs_per_hour", f.ID)
		}
	}
	if c.Jitter < 0 {
		return nil, fmt.Errorf("scenario: negative jitter %v", c.Jitter)
	}
	if d := c.Detector; d != nil {
		edgeID := road.EdgeOfLane(d.Lane)
		edge, ok := lo.Find(ring.Edges(), func(e config.Edge) bool { return e.ID == edgeID })
		if !ok {
			return nil, fmt.Errorf("scenario: detector lane %s is not on the ring: %w", d.Lane, road.ErrUnknownLane)
		}
		if d.Pos < 0 || d.Pos > edge.Length {
			return nil, fmt.Errorf("scenario: detector pos %v outside lane %s", d.Pos, d.Lane)
		}
		if d.Period <= 0 {
			return nil, errors.New("scenario: detector period must be positive")
		}
	}
	name := c.Name
	if name == "" {
		name = defaultName
	}
	return &Scenario{
		name:     name,
		ring:     ring,
		types:    types,
		order:    lo.Map(c.VTypes, func(t config.VType, _ int) string { return t.ID }),
		groups:   c.Groups,
		flows:    c.Flows,
		mixed:    c.Mixed,
		jitter:   c.Jitter,
		clock:    ck,
		detector: c.Detector,
		rng:      randengine.New(c.Seed),
		seed:     c.Seed,
	}, nil
}

// Name 场景名，也是输出文件名前缀
func (s *Scenario) Name() string {
	return s.name
}

// Ring 环形道路
func (s *Scenario) Ring() *road.Ring {
	return s.ring
}

// VType 按ID获取车辆类型（已补全缺省值）
func (s *Scenario) VType(id string) (config.VType, bool) {
	t, ok := s.types[id]
	return t, ok
}

// VTypes 按配置顺序返回所有车辆类型
func (s *Scenario) VTypes() []config.VType {
	return lo.Map(s.order, func(id string, _ int) config.VType { return s.types[id] })
}

// Count 环路上初始放置的车辆总数
func (s *Scenario) Count() int {
	return lo.SumBy(s.groups, func(g config.Group) int { return g.Count })
}

// laps 仿真时长内车辆最多能跑的圈数，用于路线repeat
func (s *Scenario) laps() int {
	fastest := lo.MaxBy(s.VTypes(), func(a, b config.VType) bool { return a.MaxSpeed > b.MaxSpeed })
	distance := fastest.MaxSpeed * (s.clock.End() - s.clock.Begin())
	return int(math.Ceil(distance/s.ring.Length())) + 1
}
