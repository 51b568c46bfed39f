package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/movienight/internal/collab"
)

const (
	presenceKeyPrefix = "movienight:presence:" // 在线记录: movienight:presence:{doc} -> hash(clientID -> json)
	documentKeyPrefix = "movienight:doc:"      // 共享文档: movienight:doc:{doc}:{name} 与 :version
)

// 在线记录 hash 被并发修改时 Touch 的重试次数
const touchRetries = 3

var errVersionMismatch = errors.New("version mismatch")

// RedisCollabRepository 基于 Redis 的协作后端
type RedisCollabRepository struct {
	client *redis.Client

	// 测试用：Touch 读取之后、写回之前调用
	beforeTouchWrite func()
}

// NewRedisCollabRepository 创建 Redis 协作后端
func NewRedisCollabRepository(client *redis.Client) *RedisCollabRepository {
	return &RedisCollabRepository{client: client}
}

// Publish 发布消息
func (r *RedisCollabRepository) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe 订阅频道，返回前确认订阅已生效
func (r *RedisCollabRepository) Subscribe(ctx context.Context, channel string) (collab.Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan []byte, subscriptionBuffer),
		done: make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

// Attach 登记在线记录
func (r *RedisCollabRepository) Attach(ctx context.Context, documentID string, rec collab.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}
	if err := r.client.HSet(ctx, presenceKey(documentID), rec.ClientID, data).Err(); err != nil {
		return fmt.Errorf("failed to attach presence: %w", err)
	}
	r.notifyPresence(ctx, documentID, "attach")
	return nil
}

// Detach 注销在线记录
func (r *RedisCollabRepository) Detach(ctx context.Context, documentID, clientID string) error {
	removed, err := r.client.HDel(ctx, presenceKey(documentID), clientID).Result()
	if err != nil {
		return fmt.Errorf("failed to detach presence: %w", err)
	}
	if removed > 0 {
		r.notifyPresence(ctx, documentID, "detach")
	}
	return nil
}

// Touch 刷新在线时间；读写之间记录被注销时不会重新写回
func (r *RedisCollabRepository) Touch(ctx context.Context, documentID, clientID string) error {
	key := presenceKey(documentID)
	for i := 0; i < touchRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.HGet(ctx, key, clientID).Result()
			if err == redis.Nil {
				return collab.ErrPresenceNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get presence: %w", err)
			}

			var rec collab.PresenceRecord
			if err := json.Unmarshal([]byte(data), &rec); err != nil {
				return fmt.Errorf("failed to unmarshal presence: %w", err)
			}
			rec.SeenAt = time.Now()
			updated, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal presence: %w", err)
			}

			if r.beforeTouchWrite != nil {
				r.beforeTouchWrite()
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, clientID, updated)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			// 同一文档的在线记录有其他写入，重读后再试
			continue
		}
		return err
	}
	return fmt.Errorf("failed to touch presence: %w", redis.TxFailedErr)
}

// Roster 文档内全部在线记录
func (r *RedisCollabRepository) Roster(ctx context.Context, documentID string) ([]collab.PresenceRecord, error) {
	entries, err := r.client.HGetAll(ctx, presenceKey(documentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}

	records := make([]collab.PresenceRecord, 0, len(entries))
	for _, data := range entries {
		var rec collab.PresenceRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SweepPresence 清理 olderThan 之前未刷新的在线记录
func (r *RedisCollabRepository) SweepPresence(ctx context.Context, documentID string, olderThan time.Time) (int, error) {
	records, err := r.Roster(ctx, documentID)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, rec := range records {
		if rec.SeenAt.Before(olderThan) {
			stale = append(stale, rec.ClientID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	removed, err := r.client.HDel(ctx, presenceKey(documentID), stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep presence: %w", err)
	}
	if removed > 0 {
		r.notifyPresence(ctx, documentID, "sweep")
	}
	return int(removed), nil
}

// GetDocument 读取文档及版本
func (r *RedisCollabRepository) GetDocument(ctx context.Context, documentID, name string) ([]byte, int64, error) {
	valueKey, versionKey := documentKeys(documentID, name)
	vals, err := r.client.MGet(ctx, valueKey, versionKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get document: %w", err)
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, 0, nil
	}
	var version int64
	if v, ok := vals[1].(string); ok {
		version, _ = strconv.ParseInt(v, 10, 64)
	}
	return []byte(raw), version, nil
}

// SetDocument 整体覆盖文档
func (r *RedisCollabRepository) SetDocument(ctx context.Context, documentID, name string, value []byte) (int64, error) {
	valueKey, versionKey := documentKeys(documentID, name)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, valueKey, value, 0)
		incr = pipe.Incr(ctx, versionKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to set document: %w", err)
	}

	version := incr.Val()
	r.notifyDocument(ctx, documentID, name, version, value)
	return version, nil
}

// CompareAndSetDocument 使用 WATCH 实现的乐观写入
func (r *RedisCollabRepository) CompareAndSetDocument(ctx context.Context, documentID, name string, version int64, value []byte) (int64, bool, error) {
	valueKey, versionKey := documentKeys(documentID, name)

	var incr *redis.IntCmd
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, valueKey, value, 0)
			incr = pipe.Incr(ctx, versionKey)
			return nil
		})
		return err
	}, versionKey)

	if errors.Is(err, errVersionMismatch) || errors.Is(err, redis.TxFailedErr) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to compare-and-set document: %w", err)
	}

	newVersion := incr.Val()
	r.notifyDocument(ctx, documentID, name, newVersion, value)
	return newVersion, true, nil
}

func (r *RedisCollabRepository) notifyPresence(ctx context.Context, documentID, event string) {
	r.client.Publish(ctx, collab.PresenceChannel(documentID), event)
}

func (r *RedisCollabRepository) notifyDocument(ctx context.Context, documentID, name string, version int64, value []byte) {
	data, err := json.Marshal(collab.DocumentEvent{Version: version, Value: json.RawMessage(value)})
	if err != nil {
		return
	}
	r.client.Publish(ctx, collab.DocumentChannel(documentID, name), data)
}

func presenceKey(documentID string) string {
	return presenceKeyPrefix + documentID
}

func documentKeys(documentID, name string) (string, string) {
	base := documentKeyPrefix + documentID + ":" + name
	return base, base + ":version"
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
