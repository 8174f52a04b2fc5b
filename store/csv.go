// 分析结果持久化：CSV文件与MongoDB
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/edie"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fundamental"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/trajectory"
)

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV 写入带表头的CSV文件，自动创建目录
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("store: %s: %w", path, err)
	}
	log.Debugf("wrote %d rows to %s", len(rows), path)
	return nil
}

// WriteCells 导出Edie网格单元
func WriteCells(path string, cells []edie.Cell) error {
	return WriteCSV(path,
		[]string{"time", "space", "tts", "ttd", "density", "flow", "speed", "passage_flow"},
		lo.Map(cells, func(c edie.Cell, _ int) []string {
			return []string{f(c.Time), f(c.Space), f(c.TTS), f(c.TTD), f(c.Density), f(c.Flow), f(c.Speed), f(c.PassageFlow)}
		}))
}

// WriteSamples 导出基本图样本
func WriteSamples(path string, s fundamental.Samples) error {
	rows := make([][]string, s.Len())
	for i := range rows {
		rows[i] = []string{f(s.Density[i]), f(s.Speed[i]), f(s.Flow[i])}
	}
	return WriteCSV(path, []string{"density", "speed", "flow"}, rows)
}

// WriteWaves 导出单车走走停停指标
func WriteWaves(path string, ws []trajectory.VehicleWave) error {
	return WriteCSV(path,
		[]string{"id", "class", "stops", "time_stopped", "speed_std", "mean_speed"},
		lo.Map(ws, func(w trajectory.VehicleWave, _ int) []string {
			return []string{w.ID, w.Class, strconv.Itoa(w.Stops), f(w.TimeStopped), f(w.SpeedStd), f(w.MeanSpeed)}
		}))
}

// WriteFleetStd 导出速度标准差时间序列
func WriteFleetStd(path string, series []trajectory.StdPoint) error {
	return WriteCSV(path, []string{"time", "std"},
		lo.Map(series, func(p trajectory.StdPoint, _ int) []string { return []string{f(p.T), f(p.Std)} }))
}
