package scenario

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

// SUMO XML元素，字段顺序即属性输出顺序

type xmlVType struct {
	ID             string  `xml:"id,attr"`
	CarFollowModel string  `xml:"carFollowModel,attr"`
	Accel          float64 `xml:"accel,attr"`
	Decel          float64 `xml:"decel,attr"`
	EmergencyDecel float64 `xml:"emergencyDecel,attr"`
	Tau            float64 `xml:"tau,attr"`
	MinGap         float64 `xml:"minGap,attr"`
	MaxSpeed       float64 `xml:"maxSpeed,attr"`
	Length         float64 `xml:"length,attr"`
	Sigma          float64 `xml:"sigma,attr"`
	Delta          float64 `xml:"delta,attr"`
	Color          string  `xml:"color,attr,omitempty"`
}

type xmlRoute struct {
	ID     string `xml:"id,attr"`
	Edges  string `xml:"edges,attr"`
	Repeat int    `xml:"repeat,attr,omitempty"`
}

type xmlVehicle struct {
	XMLName     xml.Name `xml:"vehicle"`
	ID          string   `xml:"id,attr"`
	Type        string   `xml:"type,attr"`
	Route       string   `xml:"route,attr"`
	Depart      float64  `xml:"depart,attr"`
	DepartPos   float64  `xml:"departPos,attr"`
	DepartSpeed string   `xml:"departSpeed,attr"`
}

type xmlFlow struct {
	XMLName     xml.Name `xml:"flow"`
	ID          string   `xml:"id,attr"`
	Type        string   `xml:"type,attr"`
	Route       string   `xml:"route,attr"`
	Begin       float64  `xml:"begin,attr"`
	End         float64  `xml:"end,attr"`
	Number      int      `xml:"number,attr,omitempty"`
	VehsPerHour float64  `xml:"vehsPerHour,attr,omitempty"`
	DepartSpeed string   `xml:"departSpeed,attr"`
}

// xmlRoutes 的Departures依次为*xmlVehicle或*xmlFlow，按出发时间排序
type xmlRoutes struct {
	XMLName    xml.Name   `xml:"routes"`
	VTypes     []xmlVType `xml:"vType"`
	Routes     []xmlRoute `xml:"route"`
	Departures []any
}

// departure 待排序的车辆或流量定义
type departure struct {
	at   float64
	elem any
}

type xmlNode struct {
	ID string  `xml:"id,attr"`
	X  float64 `xml:"x,attr"`
	Y  float64 `xml:"y,attr"`
}

type xmlNodes struct {
	XMLName xml.Name  `xml:"nodes"`
	Nodes   []xmlNode `xml:"node"`
}

type xmlEdge struct {
	ID       string  `xml:"id,attr"`
	From     string  `xml:"from,attr"`
	To       string  `xml:"to,attr"`
	Priority int     `xml:"priority,attr"`
	NumLanes int     `xml:"numLanes,attr"`
	Speed    float64 `xml:"speed,attr"`
	Length   float64 `xml:"length,attr"`
	Shape    string  `xml:"shape,attr"`
}

type xmlEdges struct {
	XMLName xml.Name  `xml:"edges"`
	Edges   []xmlEdge `xml:"edge"`
}

type xmlInductionLoop struct {
	ID     string  `xml:"id,attr"`
	Lane   string  `xml:"lane,attr"`
	Pos    float64 `xml:"pos,attr"`
	Period float64 `xml:"period,attr"`
	File   string  `xml:"file,attr"`
}

type xmlAdditional struct {
	XMLName xml.Name           `xml:"additional"`
	Loops   []xmlInductionLoop `xml:"inductionLoop"`
}

type xmlValue struct {
	Value string `xml:"value,attr"`
}

func value(v any) xmlValue {
	switch x := v.(type) {
	case float64:
		return xmlValue{Value: strconv.FormatFloat(x, 'f', -1, 64)}
	default:
		return xmlValue{Value: fmt.Sprint(x)}
	}
}

type xmlSumoConfig struct {
	XMLName xml.Name `xml:"configuration"`
	Input   struct {
		NetFile         xmlValue  `xml:"net-file"`
		RouteFiles      xmlValue  `xml:"route-files"`
		AdditionalFiles *xmlValue `xml:"additional-files,omitempty"`
	} `xml:"input"`
	Time struct {
		Begin      xmlValue `xml:"begin"`
		End        xmlValue `xml:"end"`
		StepLength xmlValue `xml:"step-length"`
	} `xml:"time"`
	Output struct {
		FCDOutput xmlValue `xml:"fcd-output"`
	} `xml:"output"`
	Random struct {
		Seed xmlValue `xml:"seed"`
	} `xml:"random_number"`
}

type xmlNetConfig struct {
	XMLName xml.Name `xml:"configuration"`
	Input   struct {
		NodeFiles xmlValue `xml:"node-files"`
		EdgeFiles xmlValue `xml:"edge-files"`
	} `xml:"input"`
	Output struct {
		OutputFile xmlValue `xml:"output-file"`
	} `xml:"output"`
	Processing struct {
		NoInternalLinks xmlValue `xml:"no-internal-links"`
	} `xml:"processing"`
}

func encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// routeID 从指定边出发绕环一周的路线ID
func routeID(edge string) string {
	return "ring_" + edge
}

// WriteRoutes 写出.rou.xml
// 功能：把车辆类型参数表转写为SUMO的<vType>，并写出环形路线与车辆
// 参数：w-输出
// 返回：写出错误
// 算法说明：
// 1. 每个车辆类型一行<vType carFollowModel="IDM">，属性为accel、decel、tau、minGap、maxSpeed、length等
// 2. 每条边各一条从该边出发的路线，repeat足够覆盖仿真时长内的最大圈数
// 3. 初始车辆静止出发，departPos为边内位置
// 4. 车辆与流量定义合并后按出发时间（流量为begin）稳定排序，同一时刻保持环路位置顺序，流量在车辆之后
func (s *Scenario) WriteRoutes(w io.Writer) error {
	placements, err := s.Place()
	if err != nil {
		return err
	}
	doc := xmlRoutes{}
	for _, t := range s.VTypes() {
		doc.VTypes = append(doc.VTypes, xmlVType{
			ID:             t.ID,
			CarFollowModel: t.CarFollowModel,
			Accel:          t.Accel,
			Decel:          t.Decel,
			EmergencyDecel: t.EmergencyDecel,
			Tau:            t.Tau,
			MinGap:         t.MinGap,
			MaxSpeed:       t.MaxSpeed,
			Length:         t.Length,
			Sigma:          t.Sigma,
			Delta:          t.Delta,
			Color:          t.Color,
		})
	}
	ids := s.ring.EdgeIDs()
	laps := s.laps()
	for i := range ids {
		rotated := append(append([]string{}, ids[i:]...), ids[:i]...)
		doc.Routes = append(doc.Routes, xmlRoute{
			ID:     routeID(ids[i]),
			Edges:  strings.Join(rotated, " "),
			Repeat: laps,
		})
	}
	var deps []departure
	for _, p := range placements {
		deps = append(deps, departure{at: s.clock.Begin(), elem: &xmlVehicle{
			ID:          p.ID,
			Type:        p.Type,
			Route:       routeID(p.Edge),
			Depart:      s.clock.Begin(),
			DepartPos:   math.Round(p.DepartPos*100) / 100,
			DepartSpeed: "0",
		}})
	}
	flows := append([]config.Flow(nil), s.flows...)
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].ID < flows[j].ID })
	for _, f := range flows {
		deps = append(deps, departure{at: f.Begin, elem: &xmlFlow{
			ID:          f.ID,
			Type:        f.Type,
			Route:       routeID(ids[0]),
			Begin:       f.Begin,
			End:         f.End,
			Number:      f.Number,
			VehsPerHour: f.VehsPerHour,
			DepartSpeed: "max",
		}})
	}
	sort.SliceStable(deps, func(i, j int) bool { return deps[i].at < deps[j].at })
	doc.Departures = lo.Map(deps, func(d departure, _ int) any { return d.elem })
	return encode(w, doc)
}

// WriteNodes 写出netconvert使用的.nod.xml
// 说明：节点位于周长等于环路长度的圆上，每条边的起点一个节点
func (s *Scenario) WriteNodes(w io.Writer) error {
	edges := s.ring.Edges()
	if len(edges) < 2 {
		return fmt.Errorf("scenario: a plain network needs at least two edges, got %d", len(edges))
	}
	doc := xmlNodes{}
	for i, e := range edges {
		off, _ := s.ring.Offset(e.ID)
		x, y := s.circle(off)
		doc.Nodes = append(doc.Nodes, xmlNode{ID: nodeID(i), X: x, Y: y})
	}
	return encode(w, doc)
}

// WriteEdges 写出netconvert使用的.edg.xml
// 说明：shape属性按约10米间隔沿圆弧采样，length属性显式给出边长
func (s *Scenario) WriteEdges(w io.Writer) error {
	edges := s.ring.Edges()
	if len(edges) < 2 {
		return fmt.Errorf("scenario: a plain network needs at least two edges, got %d", len(edges))
	}
	doc := xmlEdges{}
	for i, e := range edges {
		off, _ := s.ring.Offset(e.ID)
		n := max(2, int(math.Ceil(e.Length/10)))
		points := make([]string, 0, n+1)
		for j := 0; j <= n; j++ {
			x, y := s.circle(off + e.Length*float64(j)/float64(n))
			points = append(points, fmt.Sprintf("%.2f,%.2f", x, y))
		}
		speed := e.Speed
		if speed <= 0 {
			speed = defaultEdgeSpeed
		}
		doc.Edges = append(doc.Edges, xmlEdge{
			ID:       e.ID,
			From:     nodeID(i),
			To:       nodeID((i + 1) % len(edges)),
			Priority: 1,
			NumLanes: 1,
			Speed:    speed,
			Length:   e.Length,
			Shape:    strings.Join(points, " "),
		})
	}
	return encode(w, doc)
}

// WriteAdditional 写出感应线圈检测器
func (s *Scenario) WriteAdditional(w io.Writer, outputFile string) error {
	doc := xmlAdditional{}
	if d := s.detector; d != nil {
		id := d.ID
		if id == "" {
			id = "det_" + road.EdgeOfLane(d.Lane)
		}
		doc.Loops = append(doc.Loops, xmlInductionLoop{
			ID:     id,
			Lane:   d.Lane,
			Pos:    d.Pos,
			Period: d.Period,
			File:   outputFile,
		})
	}
	return encode(w, doc)
}

// WriteNetConfig 写出netconvert配置，关闭内部连接使车辆只出现在环路边上
func (s *Scenario) WriteNetConfig(w io.Writer, files Files) error {
	doc := xmlNetConfig{}
	doc.Input.NodeFiles = value(files.Nodes)
	doc.Input.EdgeFiles = value(files.Edges)
	doc.Output.OutputFile = value(files.Net)
	doc.Processing.NoInternalLinks = value(true)
	return encode(w, doc)
}

// WriteConfig 写出.sumocfg
func (s *Scenario) WriteConfig(w io.Writer, files Files) error {
	doc := xmlSumoConfig{}
	doc.Input.NetFile = value(files.Net)
	doc.Input.RouteFiles = value(files.Routes)
	if s.detector != nil {
		v := value(files.Additional)
		doc.Input.AdditionalFiles = &v
	}
	doc.Time.Begin = value(s.clock.Begin())
	doc.Time.End = value(s.clock.End())
	doc.Time.StepLength = value(s.clock.DT)
	doc.Output.FCDOutput = value(files.FCD)
	doc.Random.Seed = value(s.seed)
	return encode(w, doc)
}

const defaultEdgeSpeed = 30.0

func nodeID(i int) string {
	return "n" + strconv.Itoa(i)
}

// circle 环路坐标对应的圆上平面坐标
func (s *Scenario) circle(x float64) (float64, float64) {
	r := s.ring.Length() / (2 * math.Pi)
	theta := 2 * math.Pi * x / s.ring.Length()
	return math.Round(r*math.Cos(theta)*100) / 100, math.Round(r*math.Sin(theta)*100) / 100
}
