package repository

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/user/movienight/internal/collab"
)

const subscriptionBuffer = 64

// MemoryCollabRepository 进程内协作后端（未配置 Redis 时以及测试中使用）
type MemoryCollabRepository struct {
	mu          sync.Mutex
	presence    map[string]map[string]collab.PresenceRecord
	documents   map[string]memoryDocument
	subscribers map[string]map[*memorySubscription]struct{}
}

type memoryDocument struct {
	value   []byte
	version int64
}

// NewMemoryCollabRepository 创建进程内协作后端
func NewMemoryCollabRepository() *MemoryCollabRepository {
	return &MemoryCollabRepository{
		presence:    make(map[string]map[string]collab.PresenceRecord),
		documents:   make(map[string]memoryDocument),
		subscribers: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Publish 发布消息；订阅方缓冲已满时丢弃
func (r *MemoryCollabRepository) Publish(_ context.Context, channel string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(channel, payload)
	return nil
}

// Subscribe 订阅频道
func (r *MemoryCollabRepository) Subscribe(_ context.Context, channel string) (collab.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &memorySubscription{
		repo:    r,
		channel: channel,
		out:     make(chan []byte, subscriptionBuffer),
	}
	if r.subscribers[channel] == nil {
		r.subscribers[channel] = make(map[*memorySubscription]struct{})
	}
	r.subscribers[channel][sub] = struct{}{}
	return sub, nil
}

// Attach 登记在线记录
func (r *MemoryCollabRepository) Attach(_ context.Context, documentID string, rec collab.PresenceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.presence[documentID] == nil {
		r.presence[documentID] = make(map[string]collab.PresenceRecord)
	}
	r.presence[documentID][rec.ClientID] = rec
	r.publishLocked(collab.PresenceChannel(documentID), []byte("attach"))
	return nil
}

// Detach 注销在线记录
func (r *MemoryCollabRepository) Detach(_ context.Context, documentID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presence[documentID][clientID]; !ok {
		return nil
	}
	delete(r.presence[documentID], clientID)
	r.publishLocked(collab.PresenceChannel(documentID), []byte("detach"))
	return nil
}

// Touch 刷新在线时间
func (r *MemoryCollabRepository) Touch(_ context.Context, documentID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.presence[documentID][clientID]
	if !ok {
		return collab.ErrPresenceNotFound
	}
	rec.SeenAt = time.Now()
	r.presence[documentID][clientID] = rec
	return nil
}

// Roster 文档内全部在线记录
func (r *MemoryCollabRepository) Roster(_ context.Context, documentID string) ([]collab.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]collab.PresenceRecord, 0, len(r.presence[documentID]))
	for _, rec := range r.presence[documentID] {
		records = append(records, rec)
	}
	return records, nil
}

// SweepPresence 清理过期在线记录
func (r *MemoryCollabRepository) SweepPresence(_ context.Context, documentID string, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for clientID, rec := range r.presence[documentID] {
		if rec.SeenAt.Before(olderThan) {
			delete(r.presence[documentID], clientID)
			removed++
		}
	}
	if removed > 0 {
		r.publishLocked(collab.PresenceChannel(documentID), []byte("sweep"))
	}
	return removed, nil
}

// GetDocument 读取文档
func (r *MemoryCollabRepository) GetDocument(_ context.Context, documentID, name string) ([]byte, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[documentMapKey(documentID, name)]
	if !ok {
		return nil, 0, nil
	}
	return append([]byte(nil), doc.value...), doc.version, nil
}

// SetDocument 整体覆盖文档
func (r *MemoryCollabRepository) SetDocument(_ context.Context, documentID, name string, value []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(documentID, name, value), nil
}

// CompareAndSetDocument 版本一致时写入
func (r *MemoryCollabRepository) CompareAndSetDocument(_ context.Context, documentID, name string, version int64, value []byte) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.documents[documentMapKey(documentID, name)].version != version {
		return 0, false, nil
	}
	return r.writeLocked(documentID, name, value), true, nil
}

func (r *MemoryCollabRepository) writeLocked(documentID, name string, value []byte) int64 {
	key := documentMapKey(documentID, name)
	doc := memoryDocument{
		value:   append([]byte(nil), value...),
		version: r.documents[key].version + 1,
	}
	r.documents[key] = doc

	data, err := json.Marshal(collab.DocumentEvent{Version: doc.version, Value: json.RawMessage(doc.value)})
	if err == nil {
		r.publishLocked(collab.DocumentChannel(documentID, name), data)
	}
	return doc.version
}

func (r *MemoryCollabRepository) publishLocked(channel string, payload []byte) {
	for sub := range r.subscribers[channel] {
		select {
		case sub.out <- append([]byte(nil), payload...):
		default:
			log.Printf("[Collab] 订阅缓冲已满，丢弃消息: %s", channel)
		}
	}
}

func documentMapKey(documentID, name string) string {
	return documentID + ":" + name
}

type memorySubscription struct {
	repo    *MemoryCollabRepository
	channel string
	out     chan []byte
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.repo.mu.Lock()
		defer s.repo.mu.Unlock()
		delete(s.repo.subscribers[s.channel], s)
		close(s.out)
	})
	return nil
}
