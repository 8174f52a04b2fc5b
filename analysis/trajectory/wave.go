package trajectory

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
)

// VehicleWave 单车走走停停指标
type VehicleWave struct {
	ID          string  `json:"id" bson:"id"`
	Class       string  `json:"class" bson:"class"`
	Stops       int     `json:"stops" bson:"stops"`               // 停车次数
	TimeStopped float64 `json:"time_stopped" bson:"time_stopped"` // 停车总时长（秒）
	SpeedStd    float64 `json:"speed_std" bson:"speed_std"`       // 速度标准差（米/秒）
	MeanSpeed   float64 `json:"mean_speed" bson:"mean_speed"`
}

// ClassWave 某一类别车辆的平均指标
type ClassWave struct {
	Class       string  `json:"class" bson:"class"`
	Vehicles    int     `json:"vehicles" bson:"vehicles"`
	Stops       float64 `json:"stops" bson:"stops"`
	TimeStopped float64 `json:"time_stopped" bson:"time_stopped"`
	SpeedStd    float64 `json:"speed_std" bson:"speed_std"`
	MeanSpeed   float64 `json:"mean_speed" bson:"mean_speed"`
}

// StdPoint 某时刻全体车辆速度的标准差
type StdPoint struct {
	T   float64 `json:"t" bson:"t"`
	Std float64 `json:"std" bson:"std"`
}

// Waves 走走停停波分析结果
type Waves struct {
	Vehicles []VehicleWave `json:"vehicles" bson:"vehicles"`
	Classes  []ClassWave   `json:"classes" bson:"classes"`
	FleetStd []StdPoint    `json:"fleet_std" bson:"fleet_std"`
}

// vehicleWave 计算单车指标
// 算法说明：
// 1. 速度低于stopSpeed进入停车状态并计一次停车
// 2. 速度回升到2·stopSpeed以上才离开停车状态，避免在阈值附近抖动时重复计数
// 3. 停车状态下相邻样本的时间差计入停车时长
func vehicleWave(t *fcd.Trajectory, stopSpeed float64) VehicleWave {
	w := VehicleWave{ID: t.ID, Class: t.Class}
	stopped := false
	for i := range t.Len() {
		if stopped && i > 0 {
			w.TimeStopped += t.Time[i] - t.Time[i-1]
		}
		switch v := t.Speed[i]; {
		case !stopped && v < stopSpeed:
			stopped = true
			w.Stops++
		case stopped && v > 2*stopSpeed:
			stopped = false
		}
	}
	speed := stats.Float64Data(t.Speed)
	w.SpeedStd, _ = speed.StandardDeviationPopulation()
	w.MeanSpeed, _ = speed.Mean()
	return w
}

// AnalyzeWaves 计算走走停停波指标
// 参数：set-轨迹集合，stopSpeed-停车判定速度（米/秒）
// 返回：单车指标（按ID排序）、各类别平均指标（按类别名排序）、全体车辆速度标准差时间序列
func AnalyzeWaves(set *fcd.Set, stopSpeed float64) (*Waves, error) {
	if set.Samples() == 0 {
		return nil, fcd.ErrNoData
	}
	out := &Waves{
		Vehicles: lo.Map(lo.Filter(set.Trajectories, func(t *fcd.Trajectory, _ int) bool { return t.Len() > 0 }),
			func(t *fcd.Trajectory, _ int) VehicleWave { return vehicleWave(t, stopSpeed) }),
	}
	byClass := lo.GroupBy(out.Vehicles, func(w VehicleWave) string { return w.Class })
	for _, class := range lo.Keys(byClass) {
		ws := byClass[class]
		n := float64(len(ws))
		out.Classes = append(out.Classes, ClassWave{
			Class:       class,
			Vehicles:    len(ws),
			Stops:       float64(lo.SumBy(ws, func(w VehicleWave) int { return w.Stops })) / n,
			TimeStopped: lo.SumBy(ws, func(w VehicleWave) float64 { return w.TimeStopped }) / n,
			SpeedStd:    lo.SumBy(ws, func(w VehicleWave) float64 { return w.SpeedStd }) / n,
			MeanSpeed:   lo.SumBy(ws, func(w VehicleWave) float64 { return w.MeanSpeed }) / n,
		})
	}
	sort.Slice(out.Classes, func(i, j int) bool { return out.Classes[i].Class < out.Classes[j].Class })
	out.FleetStd = fleetStd(set)
	return out, nil
}

// fleetStd 按采样时刻分组计算全体车辆速度的总体标准差
func fleetStd(set *fcd.Set) []StdPoint {
	// 时间按毫秒取整作为分组键
	speeds := make(map[int64][]float64)
	for _, t := range set.Trajectories {
		for i := range t.Len() {
			key := int64(math.Round(t.Time[i] * 1000))
			speeds[key] = append(speeds[key], t.Speed[i])
		}
	}
	keys := lo.Keys(speeds)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return lo.Map(keys, func(k int64, _ int) StdPoint {
		std, _ := stats.StandardDeviationPopulation(speeds[k])
		return StdPoint{T: float64(k) / 1000, Std: std}
	})
}
