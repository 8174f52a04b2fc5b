package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName     = "ringroad.v1.ClockService"
	WindowProcedure = "/" + ServiceName + "/Window"
)

// Handler 返回时钟服务的路径前缀与HTTP处理器
func (c *Clock) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(WindowProcedure, connect.NewUnaryHandler(WindowProcedure, c.Window, opts...))
	return "/" + ServiceName + "/", mux
}

// Register 将ClockService注册到sidecar
// 功能：注册时钟服务的RPC处理器到sidecar中
// 参数：sidecar-sidecar实例
func (c *Clock) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(ServiceName, c.Handler, syncer.WithNoLock())
}

// Window 获取仿真时间窗口
// 功能：RPC接口，返回起止时间（秒）、步长与总步数
// 说明：客户端据此对齐时空图与Edie网格的时间轴
func (c *Clock) Window(ctx context.Context, in *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	s, err := structpb.NewStruct(map[string]any{
		"begin": c.Begin(),
		"end":   c.End(),
		"dt":    c.DT,
		"steps": c.Steps(),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(s), nil
}
