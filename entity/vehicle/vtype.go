package vehicle

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

const (
	defaultDelta          = 4   // IDM加速度指数
	defaultEmergencyDecel = 9   // 紧急制动减速度（米/秒²），与SUMO默认值一致
	defaultCarFollowModel = "IDM"
)

// ErrInvalidVType 车辆类型参数不合法
var ErrInvalidVType = errors.New("vehicle: invalid vtype")

// WithDefaults 补全车辆类型的缺省参数
// 功能：delta缺省为4，紧急制动缺省为9，跟车模型缺省为IDM
func WithDefaults(t config.VType) config.VType {
	if t.Delta == 0 {
		t.Delta = defaultDelta
	}
	if t.EmergencyDecel == 0 {
		t.EmergencyDecel = max(defaultEmergencyDecel, t.Decel)
	}
	if t.CarFollowModel == "" {
		t.CarFollowModel = defaultCarFollowModel
	}
	return t
}

// Validate 校验单个车辆类型
// 功能：检查参数表中每个物理量的取值范围
// 参数：t-车辆类型
// 返回：第一个不合法参数对应的错误（包装ErrInvalidVType）
// 说明：accel、decel、tau、length、maxSpeed必须为正，minGap非负，sigma在[0,1]内
func Validate(t config.VType) error {
	bad := func(field string, v float64) error {
		return fmt.Errorf("%w: %s has bad %s %v", ErrInvalidVType, t.ID, field, v)
	}
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidVType)
	case t.Accel <= 0:
		return bad("accel", t.Accel)
	case t.Decel <= 0:
		return bad("decel", t.Decel)
	case t.Tau <= 0:
		return bad("tau", t.Tau)
	case t.Length <= 0:
		return bad("length", t.Length)
	case t.MaxSpeed <= 0:
		return bad("maxSpeed", t.MaxSpeed)
	case t.MinGap < 0:
		return bad("minGap", t.MinGap)
	case t.Sigma < 0 || t.Sigma > 1:
		return bad("sigma", t.Sigma)
	case t.Delta < 0:
		return bad("delta", t.Delta)
	case t.EmergencyDecel != 0 && t.EmergencyDecel < t.Decel:
		return bad("emergencyDecel", t.EmergencyDecel)
	}
	return nil
}

// ValidateTable 校验整张车辆类型表
// 功能：逐行校验并检查ID唯一
// 返回：以类型ID为键的车辆类型表（已补全缺省值）
func ValidateTable(types []config.VType) (map[string]config.VType, error) {
	table := make(map[string]config.VType, len(types))
	for _, t := range types {
		if err := Validate(t); err != nil {
			return nil, err
		}
		if _, ok := table[t.ID]; ok {
			return nil, fmt.Errorf("%w: duplicated id %s", ErrInvalidVType, t.ID)
		}
		table[t.ID] = WithDefaults(t)
	}
	return table, nil
}
