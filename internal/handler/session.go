package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/movienight/internal/middleware"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/service"
	"github.com/user/movienight/internal/utils"
)

type sessionView struct {
	State      service.SessionState `json:"state"`
	User       *model.Identity      `json:"user"`
	DocumentID string               `json:"documentId"`
	ClientID   string               `json:"clientId"`
	BrowserID  string               `json:"browserId"`
	Reload     bool                 `json:"reload,omitempty"`
}

// GetSession 页面加载：以持久化身份接入共享文档
func (h *Handler) GetSession(c *gin.Context) {
	adapter, identities, client := h.session(c)

	if _, err := adapter.Start(c.Request.Context()); err != nil {
		// 接入失败不影响页面，前端按未接入处理
		log.Printf("[Session] 接入失败 (client=%s): %v", client.ID(), err)
	}

	view := h.sessionView(c, adapter)
	if view.User == nil {
		if id, ok, _ := identities.Current(); ok {
			view.User = &id
		}
	}
	utils.Success(c, view)
}

type switchRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// SwitchUser 切换到另一个演示用户
func (h *Handler) SwitchUser(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "无效的请求数据")
		return
	}

	next, err := service.LookupDemoUser(req.UserID)
	if err != nil {
		utils.NotFound(c, "用户不存在")
		return
	}

	adapter, _, _ := h.session(c)
	if _, err := adapter.SwitchIdentity(c.Request.Context(), next); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidIdentity):
			utils.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrSessionReset):
			utils.Conflict(c, err.Error(), gin.H{"reload": true})
		default:
			utils.InternalServerError(c, "")
		}
		return
	}

	utils.Success(c, h.sessionView(c, adapter))
}

// SignOut 手动注销
func (h *Handler) SignOut(c *gin.Context) {
	adapter, _, _ := h.session(c)
	adapter.SignOut(c.Request.Context())
	view := h.sessionView(c, adapter)
	view.Reload = true
	utils.Success(c, view)
}

// Leave 页面卸载（sendBeacon）；注销有时间上限，之后丢弃该标签页的会话对象
func (h *Handler) Leave(c *gin.Context) {
	adapter, _, client := h.session(c)
	<-adapter.Teardown()
	h.clients.remove(client.ID())
	c.Status(http.StatusNoContent)
}

type visibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// Visibility 标签页可见性变化
func (h *Handler) Visibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "无效的请求数据")
		return
	}
	adapter, _, _ := h.session(c)
	adapter.VisibilityChanged(req.Hidden)
	utils.Success(c, nil)
}

// Heartbeat 刷新在线时间
func (h *Handler) Heartbeat(c *gin.Context) {
	_, _, client := h.session(c)
	if _, ok := client.CurrentUser(); !ok {
		utils.Conflict(c, service.ErrNotAttached.Error(), nil)
		return
	}
	if err := client.Heartbeat(c.Request.Context()); err != nil {
		log.Printf("[Session] 心跳失败 (client=%s): %v", client.ID(), err)
		utils.Error(c, http.StatusServiceUnavailable, "心跳失败")
		return
	}
	utils.Success(c, nil)
}

// Users 可切换的演示用户
func (h *Handler) Users(c *gin.Context) {
	utils.Success(c, service.DemoUsers)
}

func (h *Handler) sessionView(c *gin.Context, adapter *service.SessionAdapter) sessionView {
	state, user := adapter.State()
	view := sessionView{
		State:      state,
		DocumentID: h.Config.DocumentID,
		ClientID:   middleware.GetClientID(c),
		BrowserID:  middleware.GetBrowserID(c),
	}
	if state == service.StateAttached {
		view.User = &user
	}
	return view
}
