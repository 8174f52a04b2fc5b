package config

import (
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// 默认环路：主弧a长901.53米，连接段b补齐至1000米
var DefaultEdges = []Edge{
	{ID: "a", Length: 901.53, Speed: 30},
	{ID: "b", Length: 98.47, Speed: 30},
}

const (
	defaultDX        = 10.0
	defaultDT        = 10.0
	defaultStopSpeed = 0.5
	defaultFormat    = "png"
	defaultClass     = "stable"
	defaultOutputDir = "output"
)

// RuntimeConfig 运行时配置
// 功能：存储补全默认值之后的配置，供各模块直接使用
type RuntimeConfig struct {
	All Config      // 全部配置
	C   ControlStep // 仿真时间窗口
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：复制原始配置并补全缺省项
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. 未配置环路边时使用DefaultEdges
// 2. 未配置网格尺寸时使用10米×10秒
// 3. 未配置分类规则时，类型ID含"regular"的归为regular，其余归为stable
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	if len(config.Scenario.Edges) == 0 {
		config.Scenario.Edges = append([]Edge(nil), DefaultEdges...)
	}
	if config.Scenario.Step.Interval == 0 {
		config.Scenario.Step.Interval = 0.1
	}
	if config.Scenario.Step.Total == 0 {
		config.Scenario.Step.Total = 6000
	}
	a := &config.Analysis
	if a.DX <= 0 {
		a.DX = defaultDX
	}
	if a.DT <= 0 {
		a.DT = defaultDT
	}
	if len(a.Classes) == 0 {
		a.Classes = []ClassRule{{Match: "regular", Class: "regular"}}
	}
	if a.DefaultClass == "" {
		a.DefaultClass = defaultClass
	}
	if a.StopSpeed <= 0 {
		a.StopSpeed = defaultStopSpeed
	}
	if a.Format == "" {
		a.Format = defaultFormat
	}
	if a.Dir == "" {
		a.Dir = defaultOutputDir
	}
	if config.Scenario.Dir == "" {
		config.Scenario.Dir = "."
	}

	rc.All = config
	rc.C = config.Scenario.Step
	return rc
}

// Load 读取并严格解析配置
// 功能：从文件路径或Base64编码数据中读取YAML配置
// 参数：path-配置文件路径，data-Base64编码的配置数据（path为空时使用）
// 返回：解析后的配置，或错误
func Load(path, data string) (Config, error) {
	var c Config
	var file []byte
	var err error
	switch {
	case path != "":
		if file, err = os.ReadFile(path); err != nil {
			return c, fmt.Errorf("config file load err: %w", err)
		}
	case data != "":
		if file, err = base64.StdEncoding.DecodeString(data); err != nil {
			return c, fmt.Errorf("config data load err: %w", err)
		}
	default:
		return c, fmt.Errorf("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		return c, fmt.Errorf("config file load err: %w", err)
	}
	return c, nil
}
