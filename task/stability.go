package task

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/ringroad-sim/store"
)

// fdPoints 稳态基本图的采样点数
const fdPoints = 50

// Stability 检查每种车辆类型在本场景环路上的稳态与弦稳定性
// 功能：假设全部车辆都是同一类型，计算IDM稳态并用Wilson判据判断弦稳定性，同时导出稳态基本图
// 返回：按车辆类型顺序的稳态结果
func (ctx *Context) Stability(c context.Context) ([]vehicle.Equilibrium, error) {
	a := ctx.runtimeConfig.All.Analysis
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	length := ctx.Ring().Length()
	count := ctx.scenario.Count()
	if count == 0 {
		log.Warnf("no vehicles placed on the ring, skip stability check")
		return nil, nil
	}
	var (
		eqs     []vehicle.Equilibrium
		rows    [][]string
		records []store.Record
	)
	for _, t := range ctx.scenario.VTypes() {
		m, err := vehicle.NewModel(t)
		if err != nil {
			return nil, err
		}
		eq, err := m.Ring(length, count)
		if err != nil {
			return nil, fmt.Errorf("vtype %s: %w", t.ID, err)
		}
		log.Infof("%s: %d vehicles on %.1f m, gap %.2f m, speed %.2f m/s, criterion %.4f, stable %v",
			t.ID, eq.Count, eq.RingLength, eq.Gap, eq.Speed, eq.Criterion, eq.Stable)
		eqs = append(eqs, eq)
		rows = append(rows, []string{
			t.ID, strconv.Itoa(eq.Count), ftoa(eq.Gap), ftoa(eq.Speed), ftoa(eq.Density),
			ftoa(eq.Flow), ftoa(eq.Criterion), strconv.FormatBool(eq.Stable),
		})
		records = append(records, store.Record{Kind: "equilibrium", Class: t.ID, Data: eq})

		// 最大密度取车长加最小车距的倒数
		fd := m.FundamentalDiagram(fdPoints, 1000/(m.Length()+t.MinGap))
		err = store.WriteCSV(ctx.output(fmt.Sprintf("equilibrium_fd_%s.csv", t.ID)),
			[]string{"density", "speed", "flow"},
			lo.Map(fd, func(p vehicle.FDPoint, _ int) []string {
				return []string{ftoa(p.Density), ftoa(p.Speed), ftoa(p.Flow)}
			}))
		if err != nil {
			return nil, err
		}
	}
	err := store.WriteCSV(ctx.output("stability.csv"),
		[]string{"vtype", "count", "gap", "speed", "density", "flow", "criterion", "stable"}, rows)
	if err != nil {
		return nil, err
	}
	if err := ctx.save(c, records); err != nil {
		return nil, err
	}
	return eqs, nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
