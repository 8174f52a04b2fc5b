package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/ringroad-sim/task"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	// 独立部署：不需要syncer，分析服务直接对外提供
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 任务名，写入数据库的run字段
	job = flag.String("job", "job0", "the name of the whole task")
	// serve模式下监听的RPC地址
	listenAddr = flag.String("listen", ":51102", "RPC listening address in serve mode")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 运行模式
	mode = flag.String("mode", task.ModeAll, "run mode (generate analyze stability serve all)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "ringroad")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	c, err := config.Load(*configPath, *configData)
	if err != nil {
		log.Panic(err)
	}
	log.Debugf("%+v", c)

	// 只有serve模式需要sidecar
	var sidecar *syncer.Sidecar
	if *mode == task.ModeServe {
		sidecar = syncer.NewSidecar(task.SelfName, *listenAddr, *syncerAddr)
	}
	t, err := task.NewContext(*job, c, sidecar, *listenAddr)
	if err != nil {
		log.Panicf("task init err: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := t.Run(ctx, *mode); err != nil {
		log.Errorf("%s failed: %v", *mode, err)
		os.Exit(1)
	}
	log.Infof("%s done", *mode)
}
