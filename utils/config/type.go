package config

// ControlStep 仿真时间窗口配置
// 功能：定义SUMO仿真的起始步、总步数与步长
// 说明：写入.sumocfg的<time>节点，同时决定时空图的时间轴范围
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒），即SUMO的step-length
}

// Edge 环形道路上的一条边
// 功能：描述环路被切分成的有向边，按顺序首尾相连构成闭环
// 说明：SUMO中每条边只有一条车道，车道ID为{id}_0
type Edge struct {
	ID     string  `yaml:"id"`              // 边ID
	Length float64 `yaml:"length"`          // 长度（米）
	Speed  float64 `yaml:"speed,omitempty"` // 限速（米/秒），为0时使用默认值
}

// VType 车辆类型参数表中的一行
// 功能：对应SUMO的<vType>元素，使用IDM跟车模型
type VType struct {
	ID             string  `yaml:"id"`
	Accel          float64 `yaml:"accel"`                     // 最大加速度（米/秒²）
	Decel          float64 `yaml:"decel"`                     // 舒适减速度（米/秒²）
	EmergencyDecel float64 `yaml:"emergency_decel,omitempty"` // 紧急制动减速度（米/秒²）
	Tau            float64 `yaml:"tau"`                       // 期望车头时距（秒）
	MinGap         float64 `yaml:"min_gap"`                   // 最小车距（米）
	MaxSpeed       float64 `yaml:"max_speed"`                 // 期望速度（米/秒）
	Length         float64 `yaml:"length"`                    // 车长（米）
	Sigma          float64 `yaml:"sigma,omitempty"`           // 驾驶不完美度
	Delta          float64 `yaml:"delta,omitempty"`           // IDM加速度指数，为0时取4
	Color          string  `yaml:"color,omitempty"`           // SUMO颜色，如"1,0,0"
	CarFollowModel string  `yaml:"car_follow_model,omitempty"`
}

// Group 初始放置在环路上的一组同类型车辆
type Group struct {
	Type  string `yaml:"type"`
	Count int    `yaml:"count"`
}

// Flow 对应SUMO的<flow>元素，用于开放路段的补充场景
type Flow struct {
	ID          string  `yaml:"id"`
	Type        string  `yaml:"type"`
	Begin       float64 `yaml:"begin"`
	End         float64 `yaml:"end"`
	Number      int     `yaml:"number,omitempty"`
	VehsPerHour float64 `yaml:"vehs_per_hour,omitempty"`
}

// Detector 感应线圈检测器配置
type Detector struct {
	ID     string  `yaml:"id"`
	Lane   string  `yaml:"lane"`
	Pos    float64 `yaml:"pos"`
	Period float64 `yaml:"period"` // 聚合周期（秒）
}

// Scenario 场景生成配置
// 功能：定义环路几何、车辆类型表、车辆放置和输出文件名
type Scenario struct {
	Name     string      `yaml:"name"`
	Edges    []Edge      `yaml:"edges"`
	VTypes   []VType     `yaml:"vtypes"`
	Groups   []Group     `yaml:"groups,omitempty"`
	Flows    []Flow      `yaml:"flows,omitempty"`
	Mixed    bool        `yaml:"mixed,omitempty"`  // 是否随机交错放置不同类型车辆
	Jitter   float64     `yaml:"jitter,omitempty"` // 出发位置随机后移的上限（米），用于打破初始均匀状态
	Seed     uint64      `yaml:"seed,omitempty"`
	Step     ControlStep `yaml:"step"`
	Detector *Detector   `yaml:"detector,omitempty"`
	Dir      string      `yaml:"dir"` // 输出目录
}

// ClassRule 车辆分类规则：类型ID包含Match子串即归入Class
type ClassRule struct {
	Match string `yaml:"match"`
	Class string `yaml:"class"`
}

// Analysis 后处理分析配置
type Analysis struct {
	FCD          string      `yaml:"fcd"`                     // FCD输出文件
	Detector     string      `yaml:"detector,omitempty"`      // 检测器输出文件
	DX           float64     `yaml:"dx,omitempty"`            // 空间网格（米）
	DT           float64     `yaml:"dt,omitempty"`            // 时间网格（秒）
	Classes      []ClassRule `yaml:"classes,omitempty"`       // 车辆分类规则
	DefaultClass string      `yaml:"default_class,omitempty"` // 无规则匹配时的类别
	StopSpeed    float64     `yaml:"stop_speed,omitempty"`    // 停车判定速度（米/秒）
	Dir          string      `yaml:"dir"`                     // 图表与CSV输出目录
	Format       string      `yaml:"format,omitempty"`        // 图片格式 png/svg/pdf
}

// Output 分析结果数据库输出配置
type Output struct {
	URI string `yaml:"uri,omitempty"` // MongoDB连接字符串，为空则不写数据库
	DB  string `yaml:"db,omitempty"`
	Col string `yaml:"col,omitempty"`
}

// GetDb 获取数据库名
func (o Output) GetDb() string {
	return o.DB
}

// GetColl 获取集合名
func (o Output) GetColl() string {
	return o.Col
}

// Config YAML配置文件的根结构
type Config struct {
	Scenario Scenario `yaml:"scenario"`
	Analysis Analysis `yaml:"analysis"`
	Output   Output   `yaml:"output,omitempty"`
}
