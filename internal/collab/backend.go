// Package collab 实现协作会话的客户端部分：身份绑定、文档选择、在线名单与共享文档。
// 传输与存储由 Backend 提供（Redis 或进程内实现，见 repository 包）。
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/user/movienight/internal/model"
)

// ErrPresenceNotFound 在线记录不存在（已被清理或从未接入）
var ErrPresenceNotFound = errors.New("presence record not found")

// PresenceRecord 一个标签页在某文档内的在线记录
type PresenceRecord struct {
	ClientID string         `json:"clientId"`
	Identity model.Identity `json:"identity"`
	SeenAt   time.Time      `json:"seenAt"`
}

// DocumentEvent 共享文档整体替换后广播的事件
type DocumentEvent struct {
	Version int64           `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// Subscription 一次频道订阅
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Broker 发布/订阅
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Backend 协作后端能力集合
type Backend interface {
	Broker

	Attach(ctx context.Context, documentID string, rec PresenceRecord) error
	Detach(ctx context.Context, documentID, clientID string) error
	Touch(ctx context.Context, documentID, clientID string) error
	Roster(ctx context.Context, documentID string) ([]PresenceRecord, error)
	SweepPresence(ctx context.Context, documentID string, olderThan time.Time) (int, error)

	// GetDocument 文档不存在时返回 nil, 0, nil
	GetDocument(ctx context.Context, documentID, name string) ([]byte, int64, error)
	SetDocument(ctx context.Context, documentID, name string, value []byte) (int64, error)
	// CompareAndSetDocument 仅当当前版本等于 version 时写入
	CompareAndSetDocument(ctx context.Context, documentID, name string, version int64, value []byte) (int64, bool, error)
}

// PresenceChannel 在线名单变更频道
func PresenceChannel(documentID string) string {
	return "movienight:events:" + documentID + ":presence"
}

// DocumentChannel 共享文档变更频道
func DocumentChannel(documentID, name string) string {
	return "movienight:events:" + documentID + ":doc:" + name
}

// IdentityChannel 同一浏览器内的身份变更频道
func IdentityChannel(browserID string) string {
	return "movienight:identity:" + browserID
}
