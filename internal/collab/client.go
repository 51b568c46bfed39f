package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/movienight/internal/model"
)

// Client 单个标签页与协作后端之间的会话
//
// 身份与文档都设置后才会在后端登记在线记录；切换文档会先从旧文档注销。
type Client struct {
	backend  Backend
	clientID string
	now      func() time.Time

	mu         sync.Mutex
	user       *model.Identity
	documentID string
}

// NewClient 创建客户端
func NewClient(backend Backend, clientID string) *Client {
	return &Client{
		backend:  backend,
		clientID: clientID,
		now:      time.Now,
	}
}

// ID 标签页 ID
func (c *Client) ID() string {
	return c.clientID
}

// Identify 绑定身份；已选文档时登记失败则保持未接入
func (c *Client) Identify(ctx context.Context, user model.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = &user
	if c.documentID == "" {
		return nil
	}
	if err := c.attachLocked(ctx); err != nil {
		c.user = nil
		return err
	}
	return nil
}

// SignOutUser 解除身份绑定；后端注销失败时本地状态依然清空
func (c *Client) SignOutUser(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil
	}
	c.user = nil
	if c.documentID == "" {
		return nil
	}
	if err := c.backend.Detach(ctx, c.documentID, c.clientID); err != nil {
		return fmt.Errorf("detach %s: %w", c.clientID, err)
	}
	return nil
}

// SetDocument 选择文档（房间），在线/共享状态都以文档为作用域
func (c *Client) SetDocument(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.documentID != "" && c.documentID != documentID && c.user != nil {
		if err := c.backend.Detach(ctx, c.documentID, c.clientID); err != nil {
			return fmt.Errorf("detach %s from %s: %w", c.clientID, c.documentID, err)
		}
	}
	c.documentID = documentID
	if c.user == nil {
		return nil
	}
	if err := c.attachLocked(ctx); err != nil {
		c.user = nil
		return err
	}
	return nil
}

// Heartbeat 刷新在线时间
func (c *Client) Heartbeat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil || c.documentID == "" {
		return nil
	}
	err := c.backend.Touch(ctx, c.documentID, c.clientID)
	if errors.Is(err, ErrPresenceNotFound) {
		// 记录已被清理，重新登记
		return c.attachLocked(ctx)
	}
	return err
}

// CurrentUser 当前绑定的身份
func (c *Client) CurrentUser() (model.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return model.Identity{}, false
	}
	return *c.user, true
}

// DocumentID 当前文档
func (c *Client) DocumentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentID
}

// Reset 丢弃全部本地状态，不访问后端
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.documentID = ""
}

func (c *Client) attachLocked(ctx context.Context) error {
	rec := PresenceRecord{
		ClientID: c.clientID,
		Identity: *c.user,
		SeenAt:   c.now(),
	}
	if err := c.backend.Attach(ctx, c.documentID, rec); err != nil {
		return fmt.Errorf("attach %s to %s: %w", c.user.UserID, c.documentID, err)
	}
	return nil
}
