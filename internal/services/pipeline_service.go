package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/enhancekeeper/service/internal/config"
	"github.com/enhancekeeper/service/internal/engines"
	"github.com/enhancekeeper/service/internal/interfaces"
	"github.com/enhancekeeper/service/internal/models"
	"github.com/enhancekeeper/service/internal/store"
	"github.com/enhancekeeper/service/internal/utils"
)

// 管道版本号，写入每次执行结果的元信息
const pipelineVersion = "1.0.0"

// 默认操作名
const defaultOperationName = "operation"

// 健康判定阈值：成功率不低于80%且运行时间大于0才算healthy
const healthySuccessRateThreshold = 80.0

// PipelineService 执行管道编排器
// 组合账本存储、自愈引擎与模式学习器：每次执行依次完成
// 操作调用、增强登记、建议产出、指标更新，失败时委托自愈引擎恢复
// 所有计数器与账本由单实例显式持有，无全局单例；并发调用时由互斥锁串行化
type PipelineService struct {
	cfg     *config.Config
	ledger  *store.LedgerStore
	healer  *engines.HealingEngine
	learner *engines.PatternLearner
	logger  interfaces.Logger

	// 聚合计数器，读写必须持锁
	totalOperations      int64
	successfulOperations int64
	failedOperations     int64
	enhancedOperations   int64
	metrics              models.SystemMetrics

	startTime time.Time
	mutex     sync.RWMutex

	monitorCancel context.CancelFunc
	monitorOnce   sync.Once
}

// NewPipelineService 创建管道编排器
func NewPipelineService(cfg *config.Config) *PipelineService {
	service := &PipelineService{
		cfg:       cfg,
		ledger:    store.NewLedgerStore(),
		healer:    engines.NewHealingEngine(),
		learner:   engines.NewPatternLearner(),
		logger:    utils.NewPipelineLogger("pipeline"),
		startTime: time.Now(),
	}

	service.mutex.Lock()
	service.refreshMetricsLocked()
	service.mutex.Unlock()

	log.Printf("🚀 [管道编排器] 初始化完成: %s", cfg.String())
	return service
}

// Execute 通过统一管道执行一个操作
// 操作调用是唯一的挂起点；ctx贯穿操作与自愈动作（显式取消/超时信号）
// 成功路径：登记增强与建议、更新计数器与指标后返回结果
// 失败路径：更新计数器后交自愈引擎处理，恢复成功则返回合成成功结果，
// 否则把原始错误原样抛回调用方——编排器本身没有重试循环
func (s *PipelineService) Execute(ctx context.Context, operation interfaces.Operation, name string) (*models.ExecutionResult, error) {
	if operation == nil {
		return nil, fmt.Errorf("操作不能为空")
	}
	if name == "" {
		name = defaultOperationName
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mutex.Lock()
	s.totalOperations++
	s.mutex.Unlock()

	started := time.Now()
	data, err := operation(ctx)

	// 自学习：每次执行记录一次命名事件观测（成败以操作本身为准，自愈不计入）
	if s.cfg.EnableSelfLearning {
		s.learner.RecordPattern(name, err == nil, nil)
	}

	if err != nil {
		return s.handleFailure(ctx, name, err, started)
	}
	return s.handleSuccess(name, data, started), nil
}

// handleSuccess 成功路径的后处理
func (s *PipelineService) handleSuccess(name string, data interface{}, started time.Time) *models.ExecutionResult {
	enhancements := make([]*models.Enhancement, 0)
	recommendations := make([]*models.Recommendation, 0)

	if s.cfg.EnableContinuousImprovement {
		// 每次成功固定产出一条 enhanced/medium 增强
		enhancements = append(enhancements, s.ledger.RecordEnhancement(
			fmt.Sprintf("操作 %s 执行成功并完成自动增强", name),
			models.LevelEnhanced,
			models.PriorityMedium,
			map[string]interface{}{"operation": name},
		))

		// 返回值非空时额外产出一条 exceptional/low 增强
		if data != nil {
			enhancements = append(enhancements, s.ledger.RecordEnhancement(
				fmt.Sprintf("操作 %s 产出有效结果", name),
				models.LevelExceptional,
				models.PriorityLow,
				map[string]interface{}{"operation": name},
			))
		}

		// 固定产出两条建议：性能优化 + 增强监控
		recommendations = append(recommendations, s.ledger.RecordRecommendation(
			"Optimize Performance",
			fmt.Sprintf("分析操作 %s 的执行路径以进一步优化性能", name),
			models.PriorityMedium, 75, "performance", true,
		))
		recommendations = append(recommendations, s.ledger.RecordRecommendation(
			"Enhanced Monitoring",
			fmt.Sprintf("为操作 %s 增加更细粒度的监控", name),
			models.PriorityLow, 50, "monitoring", true,
		))

		// 截断的是返回列表，账本保持完整
		if len(recommendations) > s.cfg.MaxRecommendations {
			recommendations = recommendations[:s.cfg.MaxRecommendations]
		}
	}

	s.mutex.Lock()
	s.successfulOperations++
	if len(enhancements) > 0 {
		s.enhancedOperations++
	}
	s.refreshMetricsLocked()
	s.mutex.Unlock()

	status := models.StatusSuccess
	if len(enhancements) > 0 {
		status = models.StatusEnhanced
	}

	s.logger.Info("操作执行成功", map[string]interface{}{
		"operation":    name,
		"status":       status,
		"enhancements": len(enhancements),
	})

	return &models.ExecutionResult{
		Success:         true,
		Status:          status,
		Data:            data,
		Enhancements:    enhancements,
		Recommendations: recommendations,
		Metadata:        s.executionMetadata(started),
	}
}

// handleFailure 失败路径：计数、自愈，恢复失败时原样抛回
func (s *PipelineService) handleFailure(ctx context.Context, name string, cause error, started time.Time) (*models.ExecutionResult, error) {
	s.mutex.Lock()
	s.failedOperations++
	s.refreshMetricsLocked()
	s.mutex.Unlock()

	s.logger.Error("操作执行失败", map[string]interface{}{
		"operation": name,
		"error":     cause.Error(),
	})

	if !s.cfg.EnableSelfHealing {
		return nil, cause
	}

	if !s.healer.Heal(ctx, cause) {
		// 自愈未成功，失败在本层即为致命
		return nil, cause
	}

	// 自愈成功：返回携带healed标志的合成成功结果
	// 自愈建议同样受持续改进开关控制：关闭时任何执行结果都不产出建议
	recommendations := make([]*models.Recommendation, 0)
	if s.cfg.EnableContinuousImprovement {
		recommendations = append(recommendations, s.ledger.RecordRecommendation(
			"Self-Healing Action",
			fmt.Sprintf("操作 %s 的故障已由自愈引擎恢复，建议排查根因: %s", name, cause.Error()),
			models.PriorityHigh, 90, "reliability", true,
		))
	}

	s.logger.Info("故障已自愈", map[string]interface{}{
		"operation": name,
		"error":     cause.Error(),
	})

	return &models.ExecutionResult{
		Success: true,
		Status:  models.StatusSuccess,
		Data: &models.HealedData{
			Healed:        true,
			OriginalError: cause.Error(),
		},
		Enhancements:    []*models.Enhancement{},
		Recommendations: recommendations,
		Metadata:        s.executionMetadata(started),
	}, nil
}

// executionMetadata 构造单次执行的元信息
func (s *PipelineService) executionMetadata(started time.Time) models.ExecutionMetadata {
	return models.ExecutionMetadata{
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		Timestamp:       time.Now().UnixMilli(),
		Version:         pipelineVersion,
	}
}

// refreshMetricsLocked 重算聚合指标，调用方需持写锁
func (s *PipelineService) refreshMetricsLocked() {
	s.metrics = models.SystemMetrics{
		TotalOperations:            s.totalOperations,
		SuccessfulOperations:       s.successfulOperations,
		FailedOperations:           s.failedOperations,
		EnhancedOperations:         s.enhancedOperations,
		AverageEnhancementLevel:    s.ledger.AverageEnhancementLevel(),
		TotalRecommendations:       int64(s.ledger.RecommendationCount()),
		ImplementedRecommendations: s.metrics.ImplementedRecommendations,
		UptimeSeconds:              time.Since(s.startTime).Seconds(),
		LastUpdated:                time.Now().UnixMilli(),
	}
}

// GetMetrics 按需重算并返回指标快照
func (s *PipelineService) GetMetrics() *models.SystemMetrics {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.refreshMetricsLocked()
	metricsCopy := s.metrics
	return &metricsCopy
}

// GetHealthCheck 健康检查
// successRate>=80 且 uptime>0 为 healthy，否则 degraded 并附问题列表
func (s *PipelineService) GetHealthCheck() *models.HealthCheck {
	s.mutex.Lock()
	s.refreshMetricsLocked()
	metrics := s.metrics
	s.mutex.Unlock()

	total := metrics.TotalOperations
	if total < 1 {
		total = 1
	}
	successRate := float64(metrics.SuccessfulOperations) / float64(total) * 100
	enhancementRate := float64(metrics.EnhancedOperations) / float64(total) * 100

	check := &models.HealthCheck{
		Status:          "healthy",
		SuccessRate:     successRate,
		EnhancementRate: enhancementRate,
		UptimeSeconds:   metrics.UptimeSeconds,
		Metrics:         &metrics,
		Timestamp:       time.Now().UnixMilli(),
	}

	if successRate < healthySuccessRateThreshold || metrics.UptimeSeconds <= 0 {
		check.Status = "degraded"
		if successRate < healthySuccessRateThreshold {
			check.Issues = append(check.Issues, "Success rate below threshold")
		}
		if metrics.UptimeSeconds <= 0 {
			check.Issues = append(check.Issues, "Uptime not established")
		}
	}

	return check
}

// StartMonitoringTask 启动后台指标刷新任务
// 按配置的监控间隔定期重算指标，ctx取消时退出
func (s *PipelineService) StartMonitoringTask(ctx context.Context) {
	s.monitorOnce.Do(func() {
		monitorCtx, cancel := context.WithCancel(ctx)
		s.monitorCancel = cancel

		go func() {
			ticker := time.NewTicker(s.cfg.MonitoringInterval)
			defer ticker.Stop()

			log.Printf("📊 [管道编排器] 指标监控任务已启动 (间隔: %v)", s.cfg.MonitoringInterval)
			for {
				select {
				case <-monitorCtx.Done():
					log.Printf("📊 [管道编排器] 指标监控任务已停止")
					return
				case <-ticker.C:
					s.mutex.Lock()
					s.refreshMetricsLocked()
					s.mutex.Unlock()
				}
			}
		}()
	})
}

// StopMonitoringTask 停止后台指标刷新任务
func (s *PipelineService) StopMonitoringTask() {
	if s.monitorCancel != nil {
		s.monitorCancel()
	}
}

// Config 返回编排器持有的配置
func (s *PipelineService) Config() *config.Config {
	return s.cfg
}

// Ledger 返回账本存储（API层查询用）
func (s *PipelineService) Ledger() *store.LedgerStore {
	return s.ledger
}

// Healer 返回自愈引擎（注册自定义策略、查询历史用）
func (s *PipelineService) Healer() *engines.HealingEngine {
	return s.healer
}

// Learner 返回模式学习器
func (s *PipelineService) Learner() *engines.PatternLearner {
	return s.learner
}
