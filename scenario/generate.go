package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Files 一个场景的全部文件名（相对输出目录）
type Files struct {
	Nodes      string // netconvert节点文件
	Edges      string // netconvert边文件
	NetConfig  string // netconvert配置
	Net        string // netconvert生成的路网
	Routes     string // 车辆类型、路线与车辆
	Additional string // 检测器
	Config     string // SUMO配置
	FCD        string // SUMO输出的浮动车数据
	Detector   string // SUMO输出的检测器数据
}

// FileNames 按场景名生成文件名
func (s *Scenario) FileNames() Files {
	return Files{
		Nodes:      s.name + ".nod.xml",
		Edges:      s.name + ".edg.xml",
		NetConfig:  s.name + ".netccfg",
		Net:        s.name + ".net.xml",
		Routes:     s.name + ".rou.xml",
		Additional: s.name + ".add.xml",
		Config:     s.name + ".sumocfg",
		FCD:        s.name + ".fcd.xml",
		Detector:   s.name + ".det.xml",
	}
}

// Generate 在目录下写出全部场景文件
// 功能：依次写出路网描述、车辆与路线、检测器、netconvert与SUMO配置
// 参数：dir-输出目录（不存在时创建）
// 返回：文件名集合
// 说明：生成后依次执行 netconvert -c {name}.netccfg 与 sumo -c {name}.sumocfg 即可复现实验
func (s *Scenario) Generate(dir string) (Files, error) {
	files := s.FileNames()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return files, fmt.Errorf("scenario: create dir: %w", err)
	}
	steps := []struct {
		name  string
		write func(io.Writer) error
	}{
		{files.Nodes, s.WriteNodes},
		{files.Edges, s.WriteEdges},
		{files.NetConfig, func(w io.Writer) error { return s.WriteNetConfig(w, files) }},
		{files.Routes, s.WriteRoutes},
		{files.Config, func(w io.Writer) error { return s.WriteConfig(w, files) }},
	}
	if s.detector != nil {
		steps = append(steps, struct {
			name  string
			write func(io.Writer) error
		}{files.Additional, func(w io.Writer) error { return s.WriteAdditional(w, files.Detector) }})
	}
	for _, step := range steps {
		if err := writeFile(filepath.Join(dir, step.name), step.write); err != nil {
			return files, err
		}
		log.Infof("wrote %s", filepath.Join(dir, step.name))
	}
	return files, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("scenario: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err = write(w); err != nil {
		return fmt.Errorf("scenario: write %s: %w", path, err)
	}
	return w.Flush()
}
