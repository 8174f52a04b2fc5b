// 感应线圈检测器输出解析，得到宏观流量-速度-密度样本
package detector

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
)

// ErrNoData 没有任何有效的检测区间
var ErrNoData = errors.New("detector: no valid intervals")

// interval SUMO E1检测器的一个聚合区间
type interval struct {
	Begin             float64 `xml:"begin,attr"`
	End               float64 `xml:"end,attr"`
	ID                string  `xml:"id,attr"`
	NVehContrib       int     `xml:"nVehContrib,attr"`
	Flow              float64 `xml:"flow,attr"`
	Occupancy         float64 `xml:"occupancy,attr"`
	Speed             float64 `xml:"speed,attr"`
	HarmonicMeanSpeed float64 `xml:"harmonicMeanSpeed,attr"`
}

type output struct {
	XMLName   xml.Name   `xml:"detector"`
	Intervals []interval `xml:"interval"`
}

// Samples 检测器样本，按列存储
// 说明：Time为区间起点（秒），Flow单位veh/h，Speed为调和平均速度（米/秒），Density单位veh/km，Occupancy单位%
type Samples struct {
	Time      []float64
	Flow      []float64
	Speed     []float64
	Density   []float64
	Occupancy []float64
}

// Len 样本数
func (s *Samples) Len() int {
	return len(s.Time)
}

// SpeedKmh 速度换算为km/h
func (s *Samples) SpeedKmh() []float64 {
	return lo.Map(s.Speed, func(v float64, _ int) float64 { return v * 3.6 })
}

// Parse 解析检测器输出
// 功能：读取全部<interval>，丢弃调和平均速度非正（无车通过）的区间
// 参数：r-检测器XML输入
// 返回：样本；全部区间无效时返回ErrNoData
// 算法说明：密度由 q = k·v 反推，k = flow / (harmonicMeanSpeed × 3.6)
func Parse(r io.Reader) (*Samples, error) {
	var out output
	if err := xml.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	s := &Samples{}
	for _, iv := range out.Intervals {
		if iv.HarmonicMeanSpeed <= 0 {
			continue
		}
		s.Time = append(s.Time, iv.Begin)
		s.Flow = append(s.Flow, iv.Flow)
		s.Speed = append(s.Speed, iv.HarmonicMeanSpeed)
		s.Density = append(s.Density, iv.Flow/(iv.HarmonicMeanSpeed*3.6))
		s.Occupancy = append(s.Occupancy, iv.Occupancy)
	}
	log.Infof("%d of %d intervals valid", s.Len(), len(out.Intervals))
	if s.Len() == 0 {
		return nil, ErrNoData
	}
	return s, nil
}

// ParseFile 解析检测器输出文件
func ParseFile(path string) (*Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
