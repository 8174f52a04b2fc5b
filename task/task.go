package task

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/analysis/fcd"
	"github.com/tsinghua-fib-lab/ringroad-sim/clock"
	"github.com/tsinghua-fib-lab/ringroad-sim/entity/road"
	"github.com/tsinghua-fib-lab/ringroad-sim/scenario"
	"github.com/tsinghua-fib-lab/ringroad-sim/server"
	"github.com/tsinghua-fib-lab/ringroad-sim/store"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

const (
	SelfName = "ringroad" // 本程序在模拟任务集群中的名字
)

// 运行模式
const (
	ModeGenerate  = "generate"  // 生成SUMO场景文件
	ModeAnalyze   = "analyze"   // 分析SUMO输出
	ModeStability = "stability" // IDM环路稳态与弦稳定性
	ModeServe     = "serve"     // 提供RPC分析服务
	ModeAll       = "all"       // generate + stability + analyze
)

// Modes 全部运行模式
var Modes = []string{ModeGenerate, ModeAnalyze, ModeStability, ModeServe, ModeAll}

// waitForServerReady 等待服务器就绪
// 功能：通过HTTP请求检查服务器是否已经启动并可以响应
// 参数：addr-服务器地址，retryCount-重试次数，interval-重试间隔
// 返回：错误信息，如果服务器就绪则返回nil
func waitForServerReady(addr string, retryCount int, interval time.Duration) error {
	client := &http.Client{
		Timeout: interval,
	}
	for range retryCount {
		resp, err := client.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("server `%v` did not become ready after %d retries", addr, retryCount)
}

// Context 任务上下文
// 功能：包含一次任务的全部配置与共享对象
// 说明：管理时钟、场景、车辆分类器以及服务模式下的sidecar
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 仿真时间窗口
	clock *clock.Clock
	// 场景（环路、车辆类型表）
	scenario *scenario.Scenario
	// 车辆分类器
	classify *fcd.Classifier

	// 辅助程序，服务模式下提供RPC，可为nil
	sidecar *syncer.Sidecar
	// sidecar监听地址
	listen string
	// sidecar是否已启动
	serving atomic.Bool
	// sidecar close channel
	sidecarCloseCh chan struct{}

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
}

// NewContext 创建任务上下文
// 参数：
//   - job: 任务名称，写入数据库时作为run字段
//   - c: 配置对象
//   - sidecar: 服务模式使用的sidecar，其他模式可为nil
//   - listen: sidecar监听地址
//
// 返回：初始化完成的Context实例或配置错误
// 算法说明：
// 1. 补全配置默认值
// 2. 校验并构建场景（环路、车辆类型、时间窗口）
// 3. 按分类规则创建车辆分类器
func NewContext(job string, c config.Config, sidecar *syncer.Sidecar, listen string) (*Context, error) {
	rc := config.NewRuntimeConfig(c)
	sc, err := scenario.New(rc.All.Scenario)
	if err != nil {
		return nil, err
	}
	ck, err := clock.New(rc.C)
	if err != nil {
		return nil, err
	}
	a := rc.All.Analysis
	ctx := &Context{
		job:            job,
		clock:          ck,
		scenario:       sc,
		classify:       fcd.NewClassifier(a.Classes, a.DefaultClass),
		sidecar:        sidecar,
		listen:         listen,
		sidecarCloseCh: make(chan struct{}, 1),
		runtimeConfig:  rc,
	}
	log.Infof("job %s: scenario %s, ring %.2f m, %d vehicles, window %s", job, sc.Name(), sc.Ring().Length(), sc.Count(), ck)
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Ring() *road.Ring {
	return ctx.scenario.Ring()
}

func (ctx *Context) Scenario() *scenario.Scenario {
	return ctx.scenario
}

func (ctx *Context) VTypes() map[string]config.VType {
	return lo.SliceToMap(ctx.scenario.VTypes(), func(t config.VType) (string, config.VType) { return t.ID, t })
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// Run 按模式运行任务
func (ctx *Context) Run(c context.Context, mode string) error {
	switch mode {
	case ModeGenerate:
		_, err := ctx.Generate()
		return err
	case ModeAnalyze:
		return ctx.Analyze(c)
	case ModeStability:
		_, err := ctx.Stability(c)
		return err
	case ModeServe:
		return ctx.Serve(c)
	case ModeAll:
		if _, err := ctx.Generate(); err != nil {
			return err
		}
		if _, err := ctx.Stability(c); err != nil {
			return err
		}
		// 场景刚生成时SUMO尚未运行，没有FCD输出可分析
		fcdPath, _, err := ctx.inputs()
		if err != nil {
			return err
		}
		if _, err := os.Stat(fcdPath); errors.Is(err, os.ErrNotExist) {
			log.Warnf("fcd output %s not found, run sumo -c on the generated config and then -mode analyze", fcdPath)
			return nil
		}
		return ctx.Analyze(c)
	}
	return fmt.Errorf("unknown mode %q, must be one of %s", mode, strings.Join(Modes, " "))
}

// Serve 注册分析服务并阻塞直到c被取消
func (ctx *Context) Serve(c context.Context) error {
	if ctx.sidecar == nil {
		return errors.New("serve mode needs a sidecar")
	}
	ctx.clock.Register(ctx.sidecar)
	server.New(ctx).Register(ctx.sidecar)
	ctx.serving.Store(true)
	go func() {
		if err := ctx.sidecar.Serve(); err != nil {
			log.Errorf("failed to serve: %v", err)
		}
		ctx.sidecarCloseCh <- struct{}{}
	}()
	addr := ctx.listen
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	if err := waitForServerReady("http://"+addr, 50, 100*time.Millisecond); err != nil {
		return err
	}
	log.Infof("analysis service %s ready at %s", server.ServiceName, ctx.listen)
	<-c.Done()
	ctx.Close()
	return nil
}

// sink 按配置打开数据库写入器，未配置时返回nil
func (ctx *Context) sink() (*store.Sink, error) {
	out := ctx.runtimeConfig.All.Output
	if out.URI == "" {
		return nil, nil
	}
	return store.Open(out)
}

// save 把结果写入数据库（已配置时）
func (ctx *Context) save(c context.Context, records []store.Record) error {
	sink, err := ctx.sink()
	if err != nil || sink == nil {
		return err
	}
	defer sink.Close(context.Background())
	for i := range records {
		records[i].Run = ctx.job
	}
	if err := sink.Insert(c, records...); err != nil {
		return err
	}
	total, err := sink.Count(c, ctx.job)
	if err != nil {
		return err
	}
	log.Infof("saved %d records, %d in total for run %s", len(records), total, ctx.job)
	return nil
}

func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	if ctx.serving.Load() {
		ctx.sidecar.Close()
		// wait for graceful stop
		<-ctx.sidecarCloseCh
	}
	ctx.closed.Store(true)
}
