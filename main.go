package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"pdf-translator-web/config"
	"pdf-translator-web/handlers"
	"pdf-translator-web/middleware"
	"pdf-translator-web/models"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadMB << 20

	sessions := middleware.NewSessionManager(24 * time.Hour)
	defer sessions.Close()
	r.Use(sessions.Middleware())

	store := models.NewMemoryTaskStore()
	h := handlers.New(store, cfg)

	// API 路由
	api := r.Group("/api")
	{
		api.POST("/upload", h.UploadHandler)
		api.POST("/translate/:taskId", h.TranslateHandler)
		api.GET("/status/:taskId", h.GetStatusHandler)
		api.GET("/events/:taskId", h.EventsHandler)
		api.GET("/download/:taskId", h.DownloadHandler)
		api.GET("/preview/:taskId/:page", h.PreviewHandler)
		api.GET("/tasks", h.GetTasksHandler)
	}

	// 过期任务清理
	go h.CleanupLoop(time.Duration(cfg.TaskRetentionHours) * time.Hour)

	if cfg.DevMode {
		// 开发模式：代理到前端开发服务器
		log.Println("🔧 开发模式：代理前端请求到 http://localhost:3000")
		target, _ := url.Parse("http://localhost:3000")
		proxy := httputil.NewSingleHostReverseProxy(target)

		r.NoRoute(func(c *gin.Context) {
			proxy.ServeHTTP(c.Writer, c.Request)
		})
	} else {
		r.NoRoute(func(c *gin.Context) {
			c.String(http.StatusNotFound, "Not found")
		})
	}

	log.Printf("🚀 文档翻译器服务器启动在 http://localhost%s", cfg.Addr)
	log.Println("✅ 会话隔离已启用 - 每个用户的任务和文件完全独立")
	r.Run(cfg.Addr)
}
