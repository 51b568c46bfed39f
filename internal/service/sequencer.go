package service

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const sequencerSize = 4096

// RequestSequencer 按标签页记录最新发出的请求序号，晚到的旧响应会被标记为过期
type RequestSequencer struct {
	mu     sync.Mutex
	latest *lru.Cache[string, int64]
}

// NewRequestSequencer 创建序号记录器
func NewRequestSequencer() *RequestSequencer {
	c, _ := lru.New[string, int64](sequencerSize)
	return &RequestSequencer{latest: c}
}

// Observe 登记一次请求；序号只增不减
func (s *RequestSequencer) Observe(clientID string, seq int64) {
	if clientID == "" || seq <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest.Get(clientID); ok && cur >= seq {
		return
	}
	s.latest.Add(clientID, seq)
}

// Check 序号落后于该标签页已发出的最新请求时返回 ErrStaleRequest
func (s *RequestSequencer) Check(clientID string, seq int64) error {
	if clientID == "" || seq <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest.Get(clientID); ok && seq < cur {
		return ErrStaleRequest
	}
	return nil
}
