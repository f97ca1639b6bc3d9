package models

import (
	"time"

	"github.com/google/uuid"
)

// 核心数据模型 -------------------------------------

// EnhancementLevel 增强级别，同时作为数值评分参与平均值计算
type EnhancementLevel int

const (
	LevelBaseline       EnhancementLevel = 100 // 基线
	LevelEnhanced       EnhancementLevel = 110 // 已增强
	LevelExceptional    EnhancementLevel = 120 // 卓越
	LevelTransformative EnhancementLevel = 150 // 变革性
)

// String 返回级别的可读名称
func (l EnhancementLevel) String() string {
	switch l {
	case LevelBaseline:
		return "baseline"
	case LevelEnhanced:
		return "enhanced"
	case LevelExceptional:
		return "exceptional"
	case LevelTransformative:
		return "transformative"
	default:
		return "unknown"
	}
}

// Priority 优先级
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank 返回优先级的数值排名，critical最高（数值最小），用于策略排序
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Enhancement 增强记录，创建后不可变
type Enhancement struct {
	ID          string                 `json:"id"`
	Description string                 `json:"description"`
	Impact      EnhancementLevel       `json:"impact"`
	Priority    Priority               `json:"priority"`
	Timestamp   int64                  `json:"timestamp"` // 毫秒时间戳
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewEnhancement 创建新的增强记录
func NewEnhancement(description string, impact EnhancementLevel, priority Priority, metadata map[string]interface{}) *Enhancement {
	return &Enhancement{
		ID:          uuid.New().String(),
		Description: description,
		Impact:      impact,
		Priority:    priority,
		Timestamp:   time.Now().UnixMilli(),
		Metadata:    metadata,
	}
}

// Recommendation 改进建议记录，创建后不可变
type Recommendation struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Priority        Priority `json:"priority"`
	EstimatedImpact float64  `json:"estimatedImpact"` // [0,100]
	Category        string   `json:"category"`
	Actionable      bool     `json:"actionable"`
	Timestamp       int64    `json:"timestamp"`
}

// NewRecommendation 创建新的改进建议
func NewRecommendation(title, description string, priority Priority, estimatedImpact float64, category string, actionable bool) *Recommendation {
	return &Recommendation{
		ID:              uuid.New().String(),
		Title:           title,
		Description:     description,
		Priority:        priority,
		EstimatedImpact: estimatedImpact,
		Category:        category,
		Actionable:      actionable,
		Timestamp:       time.Now().UnixMilli(),
	}
}

// HealingAttempt 自愈尝试记录
type HealingAttempt struct {
	ID                 string `json:"id"`
	Timestamp          int64  `json:"timestamp"`
	ErrorDescription   string `json:"errorDescription"`
	StrategyUsed       string `json:"strategyUsed"` // 未匹配到策略时为 "none"
	Success            bool   `json:"success"`
	RecoveryDurationMs int64  `json:"recoveryDurationMs"`
}

// LearningPattern 学习模式，按模式名唯一，重复观测时原地更新
type LearningPattern struct {
	ID          string                 `json:"id"`
	Pattern     string                 `json:"pattern"`
	Frequency   int                    `json:"frequency"`
	SuccessRate float64                `json:"successRate"` // [0,1] 运行加权平均
	LastSeen    int64                  `json:"lastSeen"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// 洞察类别
const (
	InsightCategoryHighPerformer    = "high-performer"
	InsightCategoryNeedsImprovement = "needs-improvement"
)

// LearningInsight 学习洞察，仅由显式的洞察生成过程产出
type LearningInsight struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // [0,1]
	Category   string  `json:"category"`
	Timestamp  int64   `json:"timestamp"`
}

// SystemMetrics 系统指标快照，按需从编排器计数器重新计算
type SystemMetrics struct {
	TotalOperations            int64   `json:"totalOperations"`
	SuccessfulOperations       int64   `json:"successfulOperations"`
	FailedOperations           int64   `json:"failedOperations"`
	EnhancedOperations         int64   `json:"enhancedOperations"`
	AverageEnhancementLevel    float64 `json:"averageEnhancementLevel"`
	TotalRecommendations       int64   `json:"totalRecommendations"`
	ImplementedRecommendations int64   `json:"implementedRecommendations"`
	UptimeSeconds              float64 `json:"uptimeSeconds"`
	LastUpdated                int64   `json:"lastUpdated"`
}

// 执行结果模型 -------------------------------------

// ExecutionStatus 执行状态
type ExecutionStatus string

const (
	StatusSuccess  ExecutionStatus = "success"
	StatusEnhanced ExecutionStatus = "enhanced"
)

// ExecutionMetadata 单次执行的元信息
type ExecutionMetadata struct {
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Timestamp       int64  `json:"timestamp"`
	Version         string `json:"version"`
}

// ExecutionResult 管道执行结果
type ExecutionResult struct {
	Success         bool              `json:"success"`
	Status          ExecutionStatus   `json:"status"`
	Data            interface{}       `json:"data,omitempty"`
	Enhancements    []*Enhancement    `json:"enhancements"`
	Recommendations []*Recommendation `json:"recommendations"`
	Metadata        ExecutionMetadata `json:"metadata"`
}

// HealedData 自愈成功后返回的数据体
// 调用方需检查 Healed 标志来区分"真实成功"与"故障恢复"
type HealedData struct {
	Healed        bool   `json:"healed"`
	OriginalError string `json:"originalError"`
}

// HealthCheck 健康检查结果
type HealthCheck struct {
	Status          string         `json:"status"` // healthy / degraded
	SuccessRate     float64        `json:"successRate"`
	EnhancementRate float64        `json:"enhancementRate"`
	UptimeSeconds   float64        `json:"uptimeSeconds"`
	Issues          []string       `json:"issues,omitempty"`
	Metrics         *SystemMetrics `json:"metrics,omitempty"`
	Timestamp       int64          `json:"timestamp"`
}
