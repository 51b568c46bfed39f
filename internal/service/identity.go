package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/user/movienight/internal/collab"
	"github.com/user/movienight/internal/model"
)

// IdentityKey 浏览器存储中保存当前身份的键
const IdentityKey = "movie-night-user"

// 身份生成方式
const (
	IdentityModePool   = "pool"
	IdentityModeRandom = "random"
)

const demoOrganization = "movie-night-org"

// DemoUsers 固定演示用户
var DemoUsers = []model.Identity{
	{
		UserID:         "user-1",
		Name:           "Sarah Chen",
		Email:          "sarah.chen@example.com",
		PhotoURL:       "https://api.dicebear.com/7.x/avataaars/svg?seed=Sarah",
		OrganizationID: demoOrganization,
	},
	{
		UserID:         "user-2",
		Name:           "Mike Johnson",
		Email:          "mike.johnson@example.com",
		PhotoURL:       "https://api.dicebear.com/7.x/avataaars/svg?seed=Mike",
		OrganizationID: demoOrganization,
	},
}

// 随机身份的候选名字
var randomNames = []string{
	"Sarah Chen", "Mike Johnson", "Emma Davis", "Alex Rodriguez",
	"Priya Patel", "Jonas Berg", "Lena Kim", "Omar Haddad",
}

// KeyValueStore 按浏览器来源隔离的键值存储
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// IdentityNotifier 身份变更的发布/订阅，替代浏览器的 storage 事件
type IdentityNotifier struct {
	broker collab.Broker
}

// NewIdentityNotifier 创建通知器
func NewIdentityNotifier(broker collab.Broker) *IdentityNotifier {
	return &IdentityNotifier{broker: broker}
}

// Publish 广播身份变更
func (n *IdentityNotifier) Publish(ctx context.Context, change model.IdentityChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.broker.Publish(ctx, collab.IdentityChannel(change.BrowserID), data)
}

// Subscribe 订阅同一浏览器内的身份变更
func (n *IdentityNotifier) Subscribe(ctx context.Context, browserID string) (<-chan model.IdentityChange, func(), error) {
	sub, err := n.broker.Subscribe(ctx, collab.IdentityChannel(browserID))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan model.IdentityChange, 8)
	go func() {
		defer close(out)
		for payload := range sub.Messages() {
			var change model.IdentityChange
			if err := json.Unmarshal(payload, &change); err != nil {
				log.Printf("[Session] 解析身份变更失败: %v", err)
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}

// IdentityOptions 身份管理参数
type IdentityOptions struct {
	Mode      string
	BrowserID string
	ClientID  string
}

// IdentityManager 会话身份管理（每个请求基于浏览器存储构造）
type IdentityManager struct {
	store    KeyValueStore
	notifier *IdentityNotifier
	opts     IdentityOptions
	validate *validator.Validate
	now      func() time.Time
}

var identityValidator = validator.New()

// NewIdentityManager 创建身份管理器，notifier 可为 nil
func NewIdentityManager(store KeyValueStore, notifier *IdentityNotifier, opts IdentityOptions) *IdentityManager {
	if opts.Mode == "" {
		opts.Mode = IdentityModePool
	}
	return &IdentityManager{
		store:    store,
		notifier: notifier,
		opts:     opts,
		validate: identityValidator,
		now:      time.Now,
	}
}

// Current 读取已持久化的身份
func (m *IdentityManager) Current() (model.Identity, bool, error) {
	raw, ok, err := m.store.Get(IdentityKey)
	if err != nil || !ok {
		return model.Identity{}, false, err
	}
	var id model.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		// 损坏的记录视为不存在，下次会重新生成
		log.Printf("[Session] 身份记录无法解析，忽略: %v", err)
		return model.Identity{}, false, nil
	}
	if m.Validate(id) != nil {
		return model.Identity{}, false, nil
	}
	return id, true, nil
}

// GetOrCreateIdentity 返回已持久化的身份，不存在时生成并先持久化
func (m *IdentityManager) GetOrCreateIdentity(ctx context.Context) (model.Identity, error) {
	if id, ok, err := m.Current(); err != nil {
		return model.Identity{}, err
	} else if ok {
		return id, nil
	}

	id := m.synthesize()
	if err := m.persist(id); err != nil {
		return model.Identity{}, err
	}
	log.Printf("[Session] 生成新身份: %s (%s)", id.Name, id.UserID)
	return id, nil
}

// SwitchIdentity 持久化新身份；与当前身份相同时不做任何事
func (m *IdentityManager) SwitchIdentity(ctx context.Context, next model.Identity) (bool, error) {
	if err := m.Validate(next); err != nil {
		return false, err
	}

	current, ok, err := m.Current()
	if err != nil {
		return false, err
	}
	if ok && current.UserID == next.UserID {
		return false, nil
	}

	if err := m.persist(next); err != nil {
		return false, err
	}
	m.publish(ctx, current.UserID, next.UserID)
	return true, nil
}

// ClearIdentity 删除持久化的身份
func (m *IdentityManager) ClearIdentity(ctx context.Context) error {
	current, _, _ := m.Current()
	if err := m.store.Delete(IdentityKey); err != nil {
		return fmt.Errorf("清除身份失败: %w", err)
	}
	m.publish(ctx, current.UserID, "")
	return nil
}

// Validate 校验身份字段
func (m *IdentityManager) Validate(id model.Identity) error {
	if err := m.validate.Struct(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return nil
}

// LookupDemoUser 在演示用户中查找
func LookupDemoUser(userID string) (model.Identity, error) {
	for _, u := range DemoUsers {
		if u.UserID == userID {
			return u, nil
		}
	}
	return model.Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
}

func (m *IdentityManager) synthesize() model.Identity {
	if m.opts.Mode != IdentityModeRandom {
		return DemoUsers[0]
	}

	name := randomNames[rand.Intn(len(randomNames))]
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return model.Identity{
		UserID:         fmt.Sprintf("user-%d-%s", m.now().UnixMilli(), suffix),
		Name:           name,
		Email:          strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PhotoURL:       model.AvatarURL(name),
		OrganizationID: demoOrganization,
	}
}

func (m *IdentityManager) persist(id model.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := m.store.Set(IdentityKey, string(data)); err != nil {
		return fmt.Errorf("保存身份失败: %w", err)
	}
	return nil
}

func (m *IdentityManager) publish(ctx context.Context, oldUserID, newUserID string) {
	if m.notifier == nil || m.opts.BrowserID == "" {
		return
	}
	change := model.IdentityChange{
		BrowserID: m.opts.BrowserID,
		ClientID:  m.opts.ClientID,
		OldUserID: oldUserID,
		NewUserID: newUserID,
	}
	if err := m.notifier.Publish(ctx, change); err != nil {
		log.Printf("[Session] 广播身份变更失败: %v", err)
	}
}
