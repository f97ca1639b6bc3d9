package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/enhancekeeper/service/internal/config"
	"github.com/enhancekeeper/service/internal/interfaces"
	"github.com/enhancekeeper/service/internal/models"
	"github.com/enhancekeeper/service/internal/services"
	"github.com/enhancekeeper/service/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler API处理器，持有管道编排器与集成管理器
type Handler struct {
	pipeline     *services.PipelineService
	integrations *services.IntegrationManager
	cfg          *config.Config
}

// NewHandler 创建API处理器
func NewHandler(pipeline *services.PipelineService, integrations *services.IntegrationManager, cfg *config.Config) *Handler {
	return &Handler{
		pipeline:     pipeline,
		integrations: integrations,
		cfg:          cfg,
	}
}

// RegisterRoutes 注册全部路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	pipeline := router.Group("/api/pipeline")
	{
		pipeline.POST("/execute", h.handleExecute)
		pipeline.GET("/health", h.handleHealthCheck)
		pipeline.GET("/metrics", h.handleMetrics)
		pipeline.GET("/config", h.handleConfig)
		pipeline.GET("/enhancements", h.handleEnhancements)
		pipeline.GET("/recommendations", h.handleRecommendations)
		pipeline.GET("/recommendations/top", h.handleTopRecommendations)
	}

	healing := router.Group("/api/healing")
	{
		healing.GET("/attempts", h.handleHealingAttempts)
		healing.GET("/success-rate", h.handleHealingSuccessRate)
	}

	learning := router.Group("/api/learning")
	{
		learning.POST("/patterns", h.handleRecordPattern)
		learning.GET("/patterns", h.handlePatterns)
		learning.POST("/insights", h.handleGenerateInsights)
		learning.GET("/insights", h.handleInsights)
	}

	integrations := router.Group("/api/integrations")
	{
		integrations.GET("", h.handleIntegrationStatus)
		integrations.POST("/register", h.handleRegisterAdapter)
		integrations.POST("/connect", h.handleConnectAll)
		integrations.POST("/disconnect", h.handleDisconnectAll)
	}
}

// 统一响应信封 -------------------------------------

// respondOK 成功响应
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// respondError 失败响应：错误一律转为 {success:false, error}，不向外传播
func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, models.APIResponse{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// 管道接口 -----------------------------------------

// handleExecute 执行一个合成操作
// 请求体描述操作行为（名称/是否失败/延迟/返回数据），由管道统一执行
func (h *Handler) handleExecute(c *gin.Context) {
	var req models.ExecuteOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("请求解析失败: %w", err))
		return
	}

	operation := buildOperation(req)

	ctx := utils.WithTraceID(c.Request.Context(), utils.GetTraceIDFromGin(c))
	result, err := h.pipeline.Execute(ctx, operation, req.Name)
	if err != nil {
		// 操作失败且自愈未成功：失败在信封层吸收
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	respondOK(c, result)
}

// buildOperation 根据请求描述构造合成操作
func buildOperation(req models.ExecuteOperationRequest) interfaces.Operation {
	return func(ctx context.Context) (interface{}, error) {
		if req.DelayMs > 0 {
			timer := time.NewTimer(time.Duration(req.DelayMs) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if req.Fail {
			message := req.ErrorMessage
			if message == "" {
				message = "simulated operation failure"
			}
			return nil, fmt.Errorf("%s", message)
		}

		return req.Payload, nil
	}
}

// handleHealthCheck 健康检查
func (h *Handler) handleHealthCheck(c *gin.Context) {
	respondOK(c, h.pipeline.GetHealthCheck())
}

// handleMetrics 指标快照
func (h *Handler) handleMetrics(c *gin.Context) {
	respondOK(c, h.pipeline.GetMetrics())
}

// handleConfig 当前配置
func (h *Handler) handleConfig(c *gin.Context) {
	cfg := h.pipeline.Config()
	respondOK(c, gin.H{
		"serviceName":                 cfg.ServiceName,
		"minEnhancementLevel":         cfg.MinEnhancementLevel,
		"enableSelfHealing":           cfg.EnableSelfHealing,
		"enableSelfLearning":          cfg.EnableSelfLearning,
		"enableContinuousImprovement": cfg.EnableContinuousImprovement,
		"monitoringIntervalMs":        cfg.MonitoringInterval.Milliseconds(),
		"maxRecommendations":          cfg.MaxRecommendations,
	})
}

// handleEnhancements 查询增强记录
// minImpact缺省时使用配置的增强级别下限；priority可选
func (h *Handler) handleEnhancements(c *gin.Context) {
	ledger := h.pipeline.Ledger()

	if priority := c.Query("priority"); priority != "" {
		respondOK(c, ledger.EnhancementsByPriority(models.Priority(priority)))
		return
	}

	minImpact := h.cfg.MinEnhancementLevel
	if raw := c.Query("minImpact"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Errorf("minImpact参数无效: %w", err))
			return
		}
		minImpact = value
	}

	respondOK(c, ledger.EnhancementsByMinImpact(models.EnhancementLevel(minImpact)))
}

// handleRecommendations 查询改进建议
func (h *Handler) handleRecommendations(c *gin.Context) {
	ledger := h.pipeline.Ledger()

	if priority := c.Query("priority"); priority != "" {
		respondOK(c, ledger.RecommendationsByPriority(models.Priority(priority)))
		return
	}

	respondOK(c, ledger.QueryRecommendations(nil))
}

// handleTopRecommendations 按预估影响降序返回前N条建议
func (h *Handler) handleTopRecommendations(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			respondError(c, http.StatusBadRequest, fmt.Errorf("limit参数无效: %s", raw))
			return
		}
		limit = value
	}

	respondOK(c, h.pipeline.Ledger().TopRecommendations(limit))
}

// 自愈接口 -----------------------------------------

// handleHealingAttempts 自愈历史
func (h *Handler) handleHealingAttempts(c *gin.Context) {
	respondOK(c, h.pipeline.Healer().Attempts())
}

// handleHealingSuccessRate 自愈成功率
func (h *Handler) handleHealingSuccessRate(c *gin.Context) {
	respondOK(c, gin.H{
		"successRate": h.pipeline.Healer().SuccessRate(),
	})
}

// 自学习接口 ---------------------------------------

// handleRecordPattern 手动记录一次模式观测
func (h *Handler) handleRecordPattern(c *gin.Context) {
	var req models.RecordPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("请求解析失败: %w", err))
		return
	}
	if req.Pattern == "" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("pattern不能为空"))
		return
	}

	pattern := h.pipeline.Learner().RecordPattern(req.Pattern, req.Success, req.Metadata)
	respondOK(c, pattern)
}

// handlePatterns 查询模式，minRate参数过滤高成功率模式
func (h *Handler) handlePatterns(c *gin.Context) {
	learner := h.pipeline.Learner()

	if raw := c.Query("minRate"); raw != "" {
		minRate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Errorf("minRate参数无效: %w", err))
			return
		}
		respondOK(c, learner.GetSuccessfulPatterns(minRate))
		return
	}

	respondOK(c, learner.Patterns())
}

// handleGenerateInsights 触发一轮洞察生成，返回本轮新增的洞察
func (h *Handler) handleGenerateInsights(c *gin.Context) {
	respondOK(c, h.pipeline.Learner().GenerateInsights())
}

// handleInsights 累计洞察日志
func (h *Handler) handleInsights(c *gin.Context) {
	respondOK(c, h.pipeline.Learner().Insights())
}

// 集成接口 -----------------------------------------

// handleIntegrationStatus 各适配器连接状态
func (h *Handler) handleIntegrationStatus(c *gin.Context) {
	respondOK(c, gin.H{
		"adapters": h.integrations.Names(),
		"status":   h.integrations.Status(),
	})
}

// handleRegisterAdapter 运行时注册集成适配器
// 仅注册不连接，后续由connect统一建立连接
func (h *Handler) handleRegisterAdapter(c *gin.Context) {
	var req models.RegisterAdapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("请求解析失败: %w", err))
		return
	}
	if req.Name == "" || req.URL == "" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("name与url不能为空"))
		return
	}

	var adapter interfaces.IntegrationAdapter
	switch req.Type {
	case "websocket":
		adapter = services.NewWebSocketAdapter(req.Name, req.URL)
	case "http":
		adapter = services.NewHTTPAdapter(req.Name, req.URL)
	default:
		respondError(c, http.StatusBadRequest, fmt.Errorf("不支持的适配器类型: %s", req.Type))
		return
	}

	if err := h.integrations.Register(adapter); err != nil {
		respondError(c, http.StatusConflict, err)
		return
	}

	respondOK(c, gin.H{
		"name": req.Name,
		"type": req.Type,
	})
}

// handleConnectAll 连接全部适配器，任一失败则整体失败
func (h *Handler) handleConnectAll(c *gin.Context) {
	if err := h.integrations.ConnectAll(c.Request.Context()); err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}
	respondOK(c, gin.H{"connected": h.integrations.Names()})
}

// handleDisconnectAll 断开全部适配器
func (h *Handler) handleDisconnectAll(c *gin.Context) {
	if err := h.integrations.DisconnectAll(); err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}
	respondOK(c, gin.H{"disconnected": h.integrations.Names()})
}
