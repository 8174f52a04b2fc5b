// 时空图数据与走走停停波指标
package trajectory

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
)

// Point 时空图上的一个点
type Point struct {
	T float64 `json:"t" bson:"t"` // 秒
	X float64 `json:"x" bson:"x"` // 米，[0, 道路长度)
	V float64 `json:"v" bson:"v"` // 米/秒
}

func wrap(x, length float64) float64 {
	x = math.Mod(x, length)
	if x < 0 {
		x += length
	}
	return x
}

// Points 生成时空图散点
// 功能：把展开坐标折回[0, roadLength)，跳过每次跨圈后的第一个样本，避免在图中出现横跨全图的连线点
// 参数：set-轨迹集合，roadLength-道路长度（不大于0时使用环路长度）
// 返回：按位置、时间升序排列的点，位置较大的点最后绘制
func Points(set *fcd.Set, roadLength float64) []Point {
	if roadLength <= 0 {
		roadLength = set.RingLength
	}
	points := make([]Point, 0, set.Samples())
	for _, t := range set.Trajectories {
		prev := 0.
		for i := range t.Len() {
			x := wrap(t.Pos[i], roadLength)
			jumped := i > 0 && x < prev-roadLength/2
			prev = x
			if jumped {
				continue
			}
			points = append(points, Point{T: t.Time[i], X: x, V: t.Speed[i]})
		}
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].X != points[j].X {
			return points[i].X < points[j].X
		}
		return points[i].T < points[j].T
	})
	return points
}

// Overview 轨迹数据概况
type Overview struct {
	Vehicles   int     `json:"vehicles" bson:"vehicles"`
	SpeedMin   float64 `json:"speed_min" bson:"speed_min"` // 米/秒
	SpeedMax   float64 `json:"speed_max" bson:"speed_max"`
	RoadLength float64 `json:"road_length" bson:"road_length"` // 环路长度
	MaxPos     float64 `json:"max_pos" bson:"max_pos"`         // 观测到的最大环路坐标
}

// Analyze 统计车辆数、速度范围与道路长度
func Analyze(set *fcd.Set) (Overview, error) {
	if set.Samples() == 0 {
		return Overview{}, fcd.ErrNoData
	}
	o := Overview{
		Vehicles:   len(set.Trajectories),
		SpeedMin:   math.Inf(1),
		SpeedMax:   math.Inf(-1),
		RoadLength: set.RingLength,
	}
	for _, t := range set.Trajectories {
		for i := range t.Len() {
			o.SpeedMin = min(o.SpeedMin, t.Speed[i])
			o.SpeedMax = max(o.SpeedMax, t.Speed[i])
			o.MaxPos = max(o.MaxPos, wrap(t.Pos[i], set.RingLength))
		}
	}
	log.Infof("%d vehicles, speed %.2f to %.2f m/s, road %.2f m", o.Vehicles, o.SpeedMin, o.SpeedMax, o.RoadLength)
	return o, nil
}

// VehicleInfo 单车概况
type VehicleInfo struct {
	ID       string  `json:"id" bson:"id"`
	Type     string  `json:"type" bson:"type"`
	Class    string  `json:"class" bson:"class"`
	Lane     string  `json:"lane" bson:"lane"` // 首个样本所在车道
	First    float64 `json:"first" bson:"first"`
	Last     float64 `json:"last" bson:"last"`
	SpeedMin float64 `json:"speed_min" bson:"speed_min"`
	SpeedMax float64 `json:"speed_max" bson:"speed_max"`
}

// VehicleReport 每辆车的时间范围与速度范围，按ID排序
func VehicleReport(set *fcd.Set) []VehicleInfo {
	ts := lo.Filter(set.Trajectories, func(t *fcd.Trajectory, _ int) bool { return t.Len() > 0 })
	report := lo.Map(ts, func(t *fcd.Trajectory, _ int) VehicleInfo {
		return VehicleInfo{
			ID:       t.ID,
			Type:     t.Type,
			Class:    t.Class,
			Lane:     lo.FirstOrEmpty(t.Lane),
			First:    t.Time[0],
			Last:     t.Time[t.Len()-1],
			SpeedMin: lo.Min(t.Speed),
			SpeedMax: lo.Max(t.Speed),
		}
	})
	sort.Slice(report, func(i, j int) bool { return report[i].ID < report[j].ID })
	return report
}
