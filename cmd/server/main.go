package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/enhancekeeper/service/internal/api"
	"github.com/enhancekeeper/service/internal/config"
	"github.com/enhancekeeper/service/internal/services"
	"github.com/enhancekeeper/service/internal/utils"
)

func main() {
	log.Println("启动 Enhance-Keeper 管道服务器...")

	// 初始化日志系统
	utils.InitLogSystem()

	// 加载配置
	cfg := config.Load()
	log.Printf("配置加载完成: %s", cfg.String())

	// 设置Gin模式
	if cfg.GinMode == "debug" || cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化管道编排器
	pipeline := services.NewPipelineService(cfg)

	// 启动后台指标监控任务
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	defer cancelMonitor()
	pipeline.StartMonitoringTask(monitorCtx)

	// 初始化集成管理器，按配置注册适配器
	integrations := services.NewIntegrationManager()
	if cfg.WebSocketAdapterURL != "" {
		if err := integrations.Register(services.NewWebSocketAdapter("websocket", cfg.WebSocketAdapterURL)); err != nil {
			log.Printf("⚠️ WebSocket适配器注册失败: %v", err)
		}
	}
	if cfg.HTTPAdapterURL != "" {
		if err := integrations.Register(services.NewHTTPAdapter("http", cfg.HTTPAdapterURL)); err != nil {
			log.Printf("⚠️ HTTP适配器注册失败: %v", err)
		}
	}

	// 创建Gin路由器
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(utils.TraceIDMiddleware())

	// 配置CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// 注册API路由
	handler := api.NewHandler(pipeline, integrations, cfg)
	handler.RegisterRoutes(router)

	// 启动HTTP服务器
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("✅ HTTP服务器监听: %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP服务器启动失败: %v", err)
		}
	}()

	// 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("收到退出信号，开始优雅关闭...")

	pipeline.StopMonitoringTask()
	if err := integrations.DisconnectAll(); err != nil {
		log.Printf("⚠️ 适配器断开时出现问题: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ 服务器关闭异常: %v", err)
	}

	log.Println("服务器已退出")
}
