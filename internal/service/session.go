package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/user/movienight/internal/model"
)

// CollabClient 协作会话客户端所需能力（collab.Client 实现）
type CollabClient interface {
	Identify(ctx context.Context, user model.Identity) error
	SignOutUser(ctx context.Context) error
	SetDocument(ctx context.Context, documentID string) error
	CurrentUser() (model.Identity, bool)
	Reset()
}

// SessionState 会话状态
type SessionState string

const (
	StateUnattached SessionState = "unattached"
	StateAttached   SessionState = "attached"
)

// SessionOptions 会话适配参数
type SessionOptions struct {
	DocumentID    string
	SettleDelay   time.Duration // 注销与重新接入之间的等待，由后端决定
	DetachTimeout time.Duration
}

// SessionAdapter 把浏览器身份绑定到协作后端的某个文档上
//
// 状态保存在 CollabClient 中（按标签页长期存在），适配器本身按请求构造。
type SessionAdapter struct {
	client     CollabClient
	identities *IdentityManager
	opts       SessionOptions
}

// NewSessionAdapter 创建会话适配器
func NewSessionAdapter(client CollabClient, identities *IdentityManager, opts SessionOptions) *SessionAdapter {
	if opts.DetachTimeout <= 0 {
		opts.DetachTimeout = 2 * time.Second
	}
	return &SessionAdapter{
		client:     client,
		identities: identities,
		opts:       opts,
	}
}

// State 当前状态
func (a *SessionAdapter) State() (SessionState, model.Identity) {
	if user, ok := a.client.CurrentUser(); ok {
		return StateAttached, user
	}
	return StateUnattached, model.Identity{}
}

// Start 以持久化（或新生成）的身份接入文档
func (a *SessionAdapter) Start(ctx context.Context) (model.Identity, error) {
	id, err := a.identities.GetOrCreateIdentity(ctx)
	if err != nil {
		return model.Identity{}, err
	}

	if current, ok := a.client.CurrentUser(); ok && current.UserID == id.UserID {
		return current, nil
	}
	if err := a.client.Identify(ctx, id); err != nil {
		return model.Identity{}, fmt.Errorf("identify %s: %w", id.UserID, err)
	}
	if err := a.client.SetDocument(ctx, a.opts.DocumentID); err != nil {
		return model.Identity{}, fmt.Errorf("set document: %w", err)
	}
	sessionTransitions.WithLabelValues("attach").Inc()
	log.Printf("[Session] 用户已接入: %s (%s)", id.Name, id.UserID)
	return id, nil
}

// SwitchIdentity 先完整注销旧身份，等待后端收尾，再接入新身份
//
// 注销失败只记录日志；之后任一步失败都会丢弃本地会话并返回 ErrSessionReset。
func (a *SessionAdapter) SwitchIdentity(ctx context.Context, next model.Identity) (model.Identity, error) {
	if err := a.identities.Validate(next); err != nil {
		return model.Identity{}, err
	}

	current, attached := a.client.CurrentUser()
	if attached && current.UserID == next.UserID {
		return current, nil
	}

	if attached {
		if err := a.client.SignOutUser(ctx); err != nil {
			log.Printf("[Session] 注销 %s 失败，继续切换: %v", current.UserID, err)
		} else {
			log.Printf("[Session] 已注销: %s", current.Name)
		}
	}

	if err := sleepContext(ctx, a.opts.SettleDelay); err != nil {
		return model.Identity{}, a.reset(err)
	}

	if _, err := a.identities.SwitchIdentity(ctx, next); err != nil {
		return model.Identity{}, a.reset(err)
	}
	if err := a.client.Identify(ctx, next); err != nil {
		return model.Identity{}, a.reset(err)
	}
	if err := a.client.SetDocument(ctx, a.opts.DocumentID); err != nil {
		return model.Identity{}, a.reset(err)
	}

	sessionTransitions.WithLabelValues("switch").Inc()
	log.Printf("[Session] 已切换到: %s (%s)", next.Name, next.UserID)
	return next, nil
}

// SignOut 注销并清除持久化身份；调用方随后应让页面回到未登录状态
func (a *SessionAdapter) SignOut(ctx context.Context) {
	if current, ok := a.client.CurrentUser(); ok {
		if err := a.client.SignOutUser(ctx); err != nil {
			log.Printf("[Session] 手动注销 %s 失败: %v", current.UserID, err)
		} else {
			log.Printf("[Session] 手动注销: %s", current.Name)
		}
	}
	if err := a.identities.ClearIdentity(ctx); err != nil {
		log.Printf("[Session] %v", err)
	}
	a.client.Reset()
	sessionTransitions.WithLabelValues("signout").Inc()
}

// Teardown 页面卸载时尽力注销，不阻塞调用方；返回的通道在完成或超时后关闭
func (a *SessionAdapter) Teardown() <-chan struct{} {
	done := make(chan struct{})
	current, ok := a.client.CurrentUser()
	if !ok {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), a.opts.DetachTimeout)
		defer cancel()

		finished := make(chan error, 1)
		go func() { finished <- a.client.SignOutUser(ctx) }()

		select {
		case err := <-finished:
			if err != nil {
				log.Printf("[Session] 页面卸载时注销失败 (%s): %v", current.UserID, err)
				return
			}
			sessionTransitions.WithLabelValues("teardown").Inc()
			log.Printf("[Session] 页面卸载，已注销: %s", current.Name)
		case <-ctx.Done():
			log.Printf("[Session] 页面卸载注销超时 (%s)", current.UserID)
		}
	}()
	return done
}

// VisibilityChanged 仅记录；离开/活跃状态由后端计算
func (a *SessionAdapter) VisibilityChanged(hidden bool) {
	current, ok := a.client.CurrentUser()
	if !ok {
		return
	}
	if hidden {
		log.Printf("[Session] 标签页隐藏: %s", current.Name)
	} else {
		log.Printf("[Session] 标签页可见: %s", current.Name)
	}
}

func (a *SessionAdapter) reset(cause error) error {
	a.client.Reset()
	sessionTransitions.WithLabelValues("reset").Inc()
	log.Printf("[Session] 切换身份失败，丢弃本地会话: %v", cause)
	return fmt.Errorf("%w: %v", ErrSessionReset, cause)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
