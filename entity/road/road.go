package road

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

// ErrUnknownLane 车道不属于环路
var ErrUnknownLane = errors.New("road: unknown lane")

// Ring 环形道路
// 功能：把首尾相连的若干条边展开为一维连续坐标[0, Length)
// 说明：SUMO输出的位置是"车道内位置"，加上所在边的起点偏移即得到环路坐标
type Ring struct {
	edges   []config.Edge
	offsets map[string]float64 // 边ID->起点偏移
	length  float64
}

// NewRing 根据边列表创建环形道路
// 功能：校验边长度与ID唯一性，计算每条边的起点偏移
// 参数：edges-按行驶顺序排列的边
// 返回：环形道路；边为空、长度非正或ID重复时返回错误
func NewRing(edges []config.Edge) (*Ring, error) {
	if len(edges) == 0 {
		return nil, errors.New("road: ring needs at least one edge")
	}
	r := &Ring{
		edges:   append([]config.Edge(nil), edges...),
		offsets: make(map[string]float64, len(edges)),
	}
	for _, e := range edges {
		if e.ID == "" {
			return nil, errors.New("road: edge id is empty")
		}
		if e.Length <= 0 {
			return nil, fmt.Errorf("road: edge %s has non-positive length %v", e.ID, e.Length)
		}
		if _, ok := r.offsets[e.ID]; ok {
			return nil, fmt.Errorf("road: duplicated edge id %s", e.ID)
		}
		r.offsets[e.ID] = r.length
		r.length += e.Length
	}
	log.Debugf("ring with %d edges, length %.2f", len(edges), r.length)
	return r, nil
}

// Length 环路总长度（米）
func (r *Ring) Length() float64 {
	return r.length
}

// Edges 按行驶顺序返回所有边
func (r *Ring) Edges() []config.Edge {
	return r.edges
}

// EdgeIDs 按行驶顺序返回所有边ID
func (r *Ring) EdgeIDs() []string {
	return lo.Map(r.edges, func(e config.Edge, _ int) string { return e.ID })
}

// EdgeOfLane 由车道ID得到边ID（去掉"_序号"后缀）
func EdgeOfLane(laneID string) string {
	i := strings.LastIndexByte(laneID, '_')
	if i <= 0 {
		return laneID
	}
	return laneID[:i]
}

// Offset 车道（或边）起点在环路坐标中的偏移
func (r *Ring) Offset(lane string) (float64, error) {
	if off, ok := r.offsets[lane]; ok {
		return off, nil
	}
	if off, ok := r.offsets[EdgeOfLane(lane)]; ok {
		return off, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownLane, lane)
}

// Position 车道内位置转换为环路坐标
func (r *Ring) Position(lane string, pos float64) (float64, error) {
	off, err := r.Offset(lane)
	if err != nil {
		return 0, err
	}
	return off + pos, nil
}

// Wrap 把任意坐标折算回[0, Length)
func (r *Ring) Wrap(x float64) float64 {
	x = math.Mod(x, r.length)
	if x < 0 {
		x += r.length
	}
	return x
}

// Locate 环路坐标转换为（边ID，边内位置）
// 说明：用于生成场景时计算车辆的departPos
func (r *Ring) Locate(x float64) (string, float64) {
	x = r.Wrap(x)
	for i := len(r.edges) - 1; i >= 0; i-- {
		e := r.edges[i]
		if off := r.offsets[e.ID]; x >= off {
			return e.ID, x - off
		}
	}
	return r.edges[0].ID, x
}
