package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/user/movienight/internal/config"
	"github.com/user/movienight/internal/handler"
	"github.com/user/movienight/internal/middleware"
	"github.com/user/movienight/internal/model"
	"github.com/user/movienight/internal/repository"
	"github.com/user/movienight/internal/router"
	"github.com/user/movienight/internal/service"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()

	// 初始化协作后端
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		client, err := repository.InitRedis(ctx, cfg)
		cancel()
		if err != nil {
			log.Fatalf("Redis 连接失败: %v", err)
		}
		redisClient = client
	}
	repos := repository.NewRepositories(redisClient)
	defer repos.Close()

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// 事件流与指标不压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/events", "/metrics"})))

	// 浏览器级存储：当前身份与浏览器 ID
	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("movienight", store))

	// 中间件
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// 初始化 Handler
	h := handler.NewHandler(repos, cfg)

	// 载入片单并保持本地缓存与其他实例同步
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()
	if items, err := h.Planning.Refresh(appCtx); err != nil {
		log.Printf("[Planning] 初始读取片单失败: %v", err)
	} else {
		log.Printf("[Planning] 已载入片单: %d 项", len(items))
	}
	stopWatch, err := h.Planning.Watch(appCtx, func(items []model.PlanningItem) {
		log.Printf("[Planning] 片单已更新: %d 项", len(items))
	})
	if err != nil {
		log.Fatalf("订阅片单失败: %v", err)
	}
	defer stopWatch()

	// 启动在线记录清理任务
	cleanupSvc := service.NewCleanupService(repos.Collab, cfg.DocumentID, cfg.PresenceTTL, cfg.PresenceSweep)
	if err := cleanupSvc.Start(); err != nil {
		log.Fatalf("启动清理任务失败: %v", err)
	}
	defer cleanupSvc.Stop()

	// 注册路由
	router.RegisterRoutes(r, h)

	// 事件流是长连接，不设写超时；请求上下文随 appCtx 取消
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		BaseContext:    func(net.Listener) context.Context { return appCtx },
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 先结束事件流，否则 Shutdown 会一直等待长连接
	stopApp()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Println("服务器强制关闭:", err)
	}

	log.Println("服务器已退出")
}
