package fcd

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
)

// Parser SUMO浮动车数据(FCD)解析器
type Parser struct {
	ring     *road.Ring
	classify *Classifier
}

// NewParser 创建解析器
// 参数：ring-环形道路（提供车道偏移），classify-车辆分类器
func NewParser(ring *road.Ring, classify *Classifier) *Parser {
	return &Parser{ring: ring, classify: classify}
}

// vehicleState 解析过程中每辆车的跨圈状态
type vehicleState struct {
	traj    *Trajectory
	wrapped float64 // 上一个样本的环路坐标
	laps    int     // 已完成圈数
}

func attr(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func floatAttr(se xml.StartElement, name string) (float64, error) {
	s, ok := attr(se, name)
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad attribute %s=%q: %w", name, s, err)
	}
	return v, nil
}

// Parse 流式解析FCD输出
// 功能：读取<timestep time><vehicle id type lane pos speed/></timestep>，生成每辆车的连续轨迹
// 参数：r-FCD XML输入
// 返回：按车辆ID排序的轨迹集合；没有任何样本时返回ErrNoData
// 算法说明：
// 1. 环路坐标 = 所在边起点偏移 + 车道内位置（如b_0上的位置加上a边长度901.53）
// 2. 若上一个样本的环路坐标比当前大半个环路以上，认为车辆跨过了环路起点，圈数+1
// 3. 展开坐标 = 环路坐标 + 圈数×环路长度
// 4. 路口内部车道（以':'开头）没有环路坐标，对应样本被跳过
// 5. 车辆类别由类型ID首次出现时确定
func (p *Parser) Parse(r io.Reader) (*Set, error) {
	dec := xml.NewDecoder(bufio.NewReader(r))
	states := make(map[string]*vehicleState)
	length := p.ring.Length()
	var (
		time      float64
		inStep    bool
		skipped   int
		timesteps int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fcd: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "timestep":
				if time, err = floatAttr(se, "time"); err != nil {
					return nil, fmt.Errorf("fcd: timestep %d: %w", timesteps, err)
				}
				inStep = true
				timesteps++
			case "vehicle":
				if !inStep {
					return nil, errors.New("fcd: vehicle outside timestep")
				}
				id, _ := attr(se, "id")
				lane, ok := attr(se, "lane")
				if id == "" || !ok {
					return nil, fmt.Errorf("fcd: timestep %v: vehicle without id or lane", time)
				}
				pos, err := floatAttr(se, "pos")
				if err != nil {
					return nil, fmt.Errorf("fcd: timestep %v vehicle %s: %w", time, id, err)
				}
				speed, err := floatAttr(se, "speed")
				if err != nil {
					return nil, fmt.Errorf("fcd: timestep %v vehicle %s: %w", time, id, err)
				}
				wrapped, err := p.ring.Position(lane, pos)
				if err != nil {
					if strings.HasPrefix(lane, ":") {
						skipped++
						continue
					}
					return nil, fmt.Errorf("fcd: timestep %v vehicle %s: %w", time, id, err)
				}
				wrapped = p.ring.Wrap(wrapped)
				st, ok := states[id]
				if !ok {
					typ, _ := attr(se, "type")
					st = &vehicleState{traj: &Trajectory{
						ID:    id,
						Type:  typ,
						Class: p.classify.Classify(typ),
					}, wrapped: wrapped}
					states[id] = st
				}
				switch {
				case st.wrapped-wrapped > length/2:
					st.laps++
				case wrapped-st.wrapped > length/2:
					st.laps--
				}
				st.wrapped = wrapped
				st.traj.append(time, wrapped+float64(st.laps)*length, speed, lane)
			}
		case xml.EndElement:
			if se.Name.Local == "timestep" {
				inStep = false
			}
		}
	}
	if len(states) == 0 {
		return nil, ErrNoData
	}
	if skipped > 0 {
		log.Debugf("skipped %d samples on internal lanes", skipped)
	}
	set := &Set{
		Trajectories: lo.Map(lo.Keys(states), func(id string, _ int) *Trajectory { return states[id].traj }),
		RingLength:   length,
	}
	sortByID(set.Trajectories)
	log.Infof("parsed %d timesteps, %d vehicles, %d samples", timesteps, len(set.Trajectories), set.Samples())
	return set, nil
}

// ParseFile 解析FCD文件
func (p *Parser) ParseFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fcd: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}
