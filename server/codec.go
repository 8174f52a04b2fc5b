package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// decode 把Struct请求解码为Go结构体，字段名以json标签为准
func decode[T any](s *structpb.Struct) (T, error) {
	var v T
	if s == nil {
		return v, nil
	}
	raw, err := s.MarshalJSON()
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("bad request: %w", err)
	}
	return v, nil
}

// encode 把Go结构体编码为Struct响应
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return s, nil
}
