package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/movienight/internal/collab"
	"github.com/user/movienight/internal/middleware"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/service"
	"github.com/user/movienight/internal/utils"
)

const (
	eventBuffer   = 32
	keepAliveTick = 25 * time.Second
)

type streamEvent struct {
	name string
	data interface{}
}

type identityEvent struct {
	OldUserID string `json:"oldUserId"`
	NewUserID string `json:"newUserId"`
	// 由同一浏览器的其他标签页发起时需要整页重新加载
	Reload bool `json:"reload"`
}

// OnlineUsers 在线用户
func (h *Handler) OnlineUsers(c *gin.Context) {
	client := h.tabClient(c)
	utils.Success(c, h.onlineUsers(c.Request.Context(), client, nil))
}

// Events SSE 事件流：片单整体替换、在线名单变化、同浏览器身份变更
func (h *Handler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	client := h.tabClient(c)
	browserID := middleware.GetBrowserID(c)

	events := make(chan streamEvent, eventBuffer)
	push := func(name string, data interface{}) {
		select {
		case events <- streamEvent{name: name, data: data}:
		default:
			log.Printf("[Events] 事件缓冲已满，丢弃 %s (client=%s)", name, client.ID())
		}
	}

	stopPlanning, err := h.Planning.Watch(ctx, func(items []model.PlanningItem) {
		push("planning", items)
	})
	if err != nil {
		log.Printf("[Events] 订阅片单失败: %v", err)
		utils.Error(c, http.StatusServiceUnavailable, "订阅失败")
		return
	}
	defer stopPlanning()

	stopRoster, err := h.Roster.OnRosterChange(ctx, func(roster []model.Identity) {
		push("presence", h.onlineUsers(ctx, client, roster))
	})
	if err != nil {
		log.Printf("[Events] 订阅在线名单失败: %v", err)
		utils.Error(c, http.StatusServiceUnavailable, "订阅失败")
		return
	}
	defer stopRoster()

	changes, stopIdentity, err := h.Notifier.Subscribe(ctx, browserID)
	if err != nil {
		log.Printf("[Events] 订阅身份变更失败: %v", err)
		utils.Error(c, http.StatusServiceUnavailable, "订阅失败")
		return
	}
	defer stopIdentity()

	push("planning", h.Planning.Items())
	push("presence", h.onlineUsers(ctx, client, nil))

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAliveTick)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt := <-events:
			c.SSEvent(evt.name, evt.data)
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("identity", identityEvent{
				OldUserID: change.OldUserID,
				NewUserID: change.NewUserID,
				Reload:    change.ClientID != client.ID(),
			})
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		return true
	})
}

// onlineUsers roster 为 nil 时从协作后端读取；读取失败只记录日志
func (h *Handler) onlineUsers(ctx context.Context, client *collab.Client, roster []model.Identity) []model.PresenceEntry {
	if roster == nil {
		var err error
		if roster, err = h.Roster.CurrentRoster(ctx); err != nil {
			log.Printf("[Presence] 读取在线名单失败: %v", err)
		}
	}

	var current *model.Identity
	if user, ok := client.CurrentUser(); ok {
		current = &user
	}
	return service.OnlineUsers(roster, current)
}
