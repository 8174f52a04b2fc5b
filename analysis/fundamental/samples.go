package fundamental

import (
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/detector"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
)

// Samples 宏观交通状态样本
// 说明：Density单位veh/km，Speed单位km/h，Flow单位veh/h
type Samples struct {
	Density []float64
	Speed   []float64
	Flow    []float64
}

// Len 样本数
func (s Samples) Len() int {
	return len(s.Density)
}

// FromDetector 由检测器样本构造
func FromDetector(d *detector.Samples) Samples {
	return Samples{
		Density: append([]float64(nil), d.Density...),
		Speed:   d.SpeedKmh(),
		Flow:    append([]float64(nil), d.Flow...),
	}
}

// FromGrid 由Edie网格构造，只取有车辆停留的单元
func FromGrid(g *edie.Grid) Samples {
	var s Samples
	for i := range g.NT {
		for j := range g.NX {
			if g.TTS[i][j] <= 0 {
				continue
			}
			s.Density = append(s.Density, g.Value(edie.Density, i, j))
			s.Speed = append(s.Speed, g.Value(edie.Speed, i, j))
			s.Flow = append(s.Flow, g.Value(edie.Flow, i, j))
		}
	}
	return s
}
