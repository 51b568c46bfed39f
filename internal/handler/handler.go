package handler

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/user/movienight/internal/collab"
	"github.com/user/movienight/internal/config"
	"github.com/user/movienight/internal/middleware"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/repository"
	"github.com/user/movienight/internal/service"
)

// 标签页长时间无请求后丢弃其会话对象（后端在线记录由清理任务回收）
const clientIdleTimeout = 30 * time.Minute

// Handler HTTP 处理器
type Handler struct {
	Repos     *repository.Repositories
	Config    *config.Config
	Catalog   *service.CatalogService
	Planning  *service.PlanningStore
	Roster    service.PresenceSource
	Notifier  *service.IdentityNotifier
	Sequencer *service.RequestSequencer

	clients *clientRegistry
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config) *Handler {
	doc := collab.NewDocument(repos.Collab, cfg.DocumentID, service.PlanningDocumentName, []model.PlanningItem{})

	return &Handler{
		Repos:     repos,
		Config:    cfg,
		Catalog:   service.NewCatalogService(cfg, nil),
		Planning:  service.NewPlanningStore(doc, service.ParseSyncMode(cfg.PlanningSyncMode)),
		Roster:    collab.NewPresence(repos.Collab, cfg.DocumentID),
		Notifier:  service.NewIdentityNotifier(repos.Collab),
		Sequencer: service.NewRequestSequencer(),
		clients:   newClientRegistry(repos.Collab),
	}
}

// session 为当前请求构造身份管理器与会话适配器；协作客户端按标签页复用
func (h *Handler) session(c *gin.Context) (*service.SessionAdapter, *service.IdentityManager, *collab.Client) {
	client := h.tabClient(c)
	identities := service.NewIdentityManager(
		repository.NewSessionStore(sessions.Default(c)),
		h.Notifier,
		service.IdentityOptions{
			Mode:      h.Config.IdentityMode,
			BrowserID: middleware.GetBrowserID(c),
			ClientID:  client.ID(),
		},
	)
	adapter := service.NewSessionAdapter(client, identities, service.SessionOptions{
		DocumentID:    h.Config.DocumentID,
		SettleDelay:   h.Config.SwitchSettleDelay,
		DetachTimeout: h.Config.DetachTimeout,
	})
	return adapter, identities, client
}

// tabClient 当前请求所属标签页的协作客户端；标签页 ID 由客户端声明，按浏览器隔离
func (h *Handler) tabClient(c *gin.Context) *collab.Client {
	return h.clients.get(middleware.GetBrowserID(c) + ":" + middleware.GetClientID(c))
}

// clientRegistry 浏览器 ID:标签页 ID → 协作客户端
type clientRegistry struct {
	backend collab.Backend
	c       *cache.Cache
}

func newClientRegistry(backend collab.Backend) *clientRegistry {
	return &clientRegistry{
		backend: backend,
		c:       cache.New(clientIdleTimeout, 5*time.Minute),
	}
}

// get 取出或创建客户端，并顺延过期时间
func (r *clientRegistry) get(clientID string) *collab.Client {
	if v, ok := r.c.Get(clientID); ok {
		r.c.Set(clientID, v, cache.DefaultExpiration)
		return v.(*collab.Client)
	}

	client := collab.NewClient(r.backend, clientID)
	if err := r.c.Add(clientID, client, cache.DefaultExpiration); err != nil {
		// 并发创建时以先登记的为准
		if v, ok := r.c.Get(clientID); ok {
			return v.(*collab.Client)
		}
	}
	return client
}

func (r *clientRegistry) remove(clientID string) {
	r.c.Delete(clientID)
}
