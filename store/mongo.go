package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/ringroad-sim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Record 写入数据库的一条分析结果
type Record struct {
	Run   string    `bson:"run"`   // 场景名
	Kind  string    `bson:"kind"`  // 结果类型，如summary、fit、waves
	Class string    `bson:"class"` // 车辆类别
	Time  time.Time `bson:"time"`
	Data  any       `bson:"data"`
}

// Sink MongoDB结果写入器
type Sink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open 连接MongoDB
// 参数：cfg-输出配置，URI为空时返回错误
func Open(cfg config.Output) (*Sink, error) {
	if cfg.URI == "" {
		return nil, errors.New("store: empty mongo uri")
	}
	if cfg.DB == "" || cfg.Col == "" {
		return nil, fmt.Errorf("store: mongo output needs db and col, got %q.%q", cfg.DB, cfg.Col)
	}
	client := mongoutil.NewClient(cfg.URI)
	log.Infof("write results to %s.%s", cfg.DB, cfg.Col)
	return &Sink{
		client: client,
		coll:   client.Database(cfg.GetDb()).Collection(cfg.GetColl()),
	}, nil
}

// Insert 批量写入结果
func (s *Sink) Insert(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now()
	docs := lo.Map(records, func(r Record, _ int) any {
		if r.Time.IsZero() {
			r.Time = now
		}
		return r
	})
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("store: insert %d records: %w", len(docs), err)
	}
	return nil
}

// Count 统计某次运行已写入的结果数
func (s *Sink) Count(ctx context.Context, run string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"run": run})
}

// Close 断开连接
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
