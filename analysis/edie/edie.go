// Edie广义定义：由车辆轨迹计算时空网格上的密度、流量与速度
package edie

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
)

// Params 网格参数
type Params struct {
	DX    float64 // 空间单元（米）
	DT    float64 // 时间单元（秒）
	Class string  // 车辆类别，空串或"all"表示全部
}

type breakpoint struct {
	s     float64 // 线段参数[0, 1]
	space bool    // 是否为空间单元边界
}

// Compute 计算Edie时空网格
// 功能：把每辆车相邻两个采样点之间视为时空平面上的直线段，按单元边界切分后累计TTS与TTD
// 参数：set-轨迹集合（位置为展开坐标），p-网格参数
// 返回：网格；所选类别没有样本时返回fcd.ErrNoData
// 算法说明：
// 1. 网格覆盖[0, 环路长度)×[tMin, tMax]，tMax所在的右边界并入最后一个时间单元
// 2. 线段在时间边界、空间边界（含环路接缝）处切分，每段按中点归属单元
// 3. 每段时长计入TTS，行驶距离计入TTD
// 4. 车辆向前越过空间边界时，在进入的单元中记一次通过
// 5. 按车辆并行计算后求和
func Compute(set *fcd.Set, p Params) (*Grid, error) {
	if p.DX <= 0 || p.DT <= 0 {
		return nil, fmt.Errorf("edie: non-positive cell size dx=%v dt=%v", p.DX, p.DT)
	}
	if set.RingLength <= 0 {
		return nil, errors.New("edie: non-positive ring length")
	}
	sel := set.Filter(p.Class)
	tMin, tMax, ok := sel.TimeRange()
	if !ok {
		return nil, fmt.Errorf("edie: class %q: %w", p.Class, fcd.ErrNoData)
	}
	nt := max(1, int(math.Ceil((tMax-tMin)/p.DT-1e-9)))
	nx := max(1, int(math.Ceil(set.RingLength/p.DX-1e-9)))
	partials := parallel.GoMap(sel.Trajectories, func(t *fcd.Trajectory) *Grid {
		g := newGrid(p.DX, p.DT, tMin, nt, nx)
		accumulate(g, t, set.RingLength)
		return g
	})
	grid := newGrid(p.DX, p.DT, tMin, nt, nx)
	for _, g := range partials {
		grid.add(g)
	}
	log.Debugf("class %q: %d vehicles on %dx%d grid", p.Class, grid.Vehicles, nt, nx)
	return grid, nil
}

func accumulate(g *Grid, t *fcd.Trajectory, length float64) {
	if t.Len() == 0 {
		return
	}
	g.Vehicles = 1
	breaks := make([]breakpoint, 0, 8)
	for k := 1; k < t.Len(); k++ {
		t0, t1 := t.Time[k-1], t.Time[k]
		x0, x1 := t.Pos[k-1], t.Pos[k]
		if t1 <= t0 {
			continue
		}
		breaks = append(breaks[:0], breakpoint{s: 0}, breakpoint{s: 1})
		// 时间边界
		for i := math.Floor((t0-g.T0)/g.DT) + 1; g.T0+i*g.DT < t1; i++ {
			breaks = append(breaks, breakpoint{s: (g.T0 + i*g.DT - t0) / (t1 - t0)})
		}
		// 空间边界，起点恰在边界上也计为越过
		forward := x1 > x0
		if x0 != x1 {
			low, high := min(x0, x1), max(x0, x1)
			for lap := math.Floor(low / length); lap*length <= high; lap++ {
				for j := range g.NX {
					b := lap*length + float64(j)*g.DX
					if b >= low && b < high {
						breaks = append(breaks, breakpoint{s: (b - x0) / (x1 - x0), space: true})
					}
				}
			}
		}
		sort.Slice(breaks, func(a, b int) bool { return breaks[a].s < breaks[b].s })
		for n := 0; n+1 < len(breaks); n++ {
			sa, sb := breaks[n].s, breaks[n+1].s
			crossing := breaks[n].space
			// 合并重合的切分点
			for n+1 < len(breaks)-1 && breaks[n+1].s <= sa {
				crossing = crossing || breaks[n+1].space
				n++
				sb = breaks[n+1].s
			}
			if sb <= sa {
				continue
			}
			mid := (sa + sb) / 2
			i := clamp(int(math.Floor((t0+mid*(t1-t0)-g.T0)/g.DT)), g.NT)
			x := math.Mod(x0+mid*(x1-x0), length)
			if x < 0 {
				x += length
			}
			j := clamp(int(math.Floor(x/g.DX)), g.NX)
			g.TTS[i][j] += (sb - sa) * (t1 - t0)
			g.TTD[i][j] += (sb - sa) * math.Abs(x1-x0)
			if crossing && forward {
				g.Passages[i][j]++
			}
		}
	}
}

func clamp(i, n int) int {
	return min(max(i, 0), n-1)
}
