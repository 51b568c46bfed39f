package repository

import (
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/patrickmn/go-cache"
)

// SessionStore 以浏览器 Cookie 会话作为按来源隔离的键值存储
type SessionStore struct {
	session sessions.Session
}

// NewSessionStore 包装当前请求的会话
func NewSessionStore(session sessions.Session) *SessionStore {
	return &SessionStore{session: session}
}

// Get 读取键
func (s *SessionStore) Get(key string) (string, bool, error) {
	v, ok := s.session.Get(key).(string)
	return v, ok && v != "", nil
}

// Set 写入键并立即保存
func (s *SessionStore) Set(key, value string) error {
	s.session.Set(key, value)
	if err := s.session.Save(); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// Delete 删除键并立即保存
func (s *SessionStore) Delete(key string) error {
	s.session.Delete(key)
	if err := s.session.Save(); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// MemoryStore 进程内键值存储（测试使用）
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore 创建不过期的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, 0)}
}

// Get 读取键
func (m *MemoryStore) Get(key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

// Set 写入键
func (m *MemoryStore) Set(key, value string) error {
	m.c.Set(key, value, cache.NoExpiration)
	return nil
}

// Delete 删除键
func (m *MemoryStore) Delete(key string) error {
	m.c.Delete(key)
	return nil
}
