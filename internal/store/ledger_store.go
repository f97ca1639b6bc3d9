package store

import (
	"sort"
	"sync"

	"github.com/enhancekeeper/service/internal/models"
)

// LedgerStore 账本存储
// 两个互相独立的只追加登记表：增强记录与改进建议
// 纯内存追加，无失败模式；所有读操作返回防御性拷贝
type LedgerStore struct {
	enhancements    []*models.Enhancement
	recommendations []*models.Recommendation
	mutex           sync.RWMutex
}

// NewLedgerStore 创建账本存储实例
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		enhancements:    make([]*models.Enhancement, 0),
		recommendations: make([]*models.Recommendation, 0),
	}
}

// RecordEnhancement 追加一条增强记录，返回记录副本
func (s *LedgerStore) RecordEnhancement(description string, impact models.EnhancementLevel, priority models.Priority, metadata map[string]interface{}) *models.Enhancement {
	enhancement := models.NewEnhancement(description, impact, priority, metadata)

	s.mutex.Lock()
	s.enhancements = append(s.enhancements, enhancement)
	s.mutex.Unlock()

	return copyEnhancement(enhancement)
}

// RecordRecommendation 追加一条改进建议，返回记录副本
func (s *LedgerStore) RecordRecommendation(title, description string, priority models.Priority, estimatedImpact float64, category string, actionable bool) *models.Recommendation {
	recommendation := models.NewRecommendation(title, description, priority, estimatedImpact, category, actionable)

	s.mutex.Lock()
	s.recommendations = append(s.recommendations, recommendation)
	s.mutex.Unlock()

	return copyRecommendation(recommendation)
}

// QueryEnhancements 按谓词过滤增强记录，保持插入顺序
func (s *LedgerStore) QueryEnhancements(predicate func(*models.Enhancement) bool) []*models.Enhancement {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	results := make([]*models.Enhancement, 0)
	for _, e := range s.enhancements {
		if predicate == nil || predicate(e) {
			results = append(results, copyEnhancement(e))
		}
	}
	return results
}

// QueryRecommendations 按谓词过滤改进建议，保持插入顺序
func (s *LedgerStore) QueryRecommendations(predicate func(*models.Recommendation) bool) []*models.Recommendation {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	results := make([]*models.Recommendation, 0)
	for _, r := range s.recommendations {
		if predicate == nil || predicate(r) {
			results = append(results, copyRecommendation(r))
		}
	}
	return results
}

// EnhancementsByPriority 按优先级过滤增强记录
func (s *LedgerStore) EnhancementsByPriority(priority models.Priority) []*models.Enhancement {
	return s.QueryEnhancements(func(e *models.Enhancement) bool {
		return e.Priority == priority
	})
}

// RecommendationsByPriority 按优先级过滤改进建议
func (s *LedgerStore) RecommendationsByPriority(priority models.Priority) []*models.Recommendation {
	return s.QueryRecommendations(func(r *models.Recommendation) bool {
		return r.Priority == priority
	})
}

// EnhancementsByMinImpact 过滤出影响级别不低于level的增强记录
func (s *LedgerStore) EnhancementsByMinImpact(level models.EnhancementLevel) []*models.Enhancement {
	return s.QueryEnhancements(func(e *models.Enhancement) bool {
		return e.Impact >= level
	})
}

// AverageEnhancementLevel 计算所有增强记录影响级别的算术平均值
// 空账本返回基线值100，这是刻意的默认语义，不是除零兜底
func (s *LedgerStore) AverageEnhancementLevel() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.enhancements) == 0 {
		return float64(models.LevelBaseline)
	}

	total := 0
	for _, e := range s.enhancements {
		total += int(e.Impact)
	}
	return float64(total) / float64(len(s.enhancements))
}

// TopRecommendations 返回预估影响最大的limit条建议，降序排列
// 相同影响值保持原插入顺序（稳定排序）
func (s *LedgerStore) TopRecommendations(limit int) []*models.Recommendation {
	s.mutex.RLock()
	sorted := make([]*models.Recommendation, len(s.recommendations))
	copy(sorted, s.recommendations)
	s.mutex.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EstimatedImpact > sorted[j].EstimatedImpact
	})

	if limit < 0 {
		limit = 0
	}
	if limit > len(sorted) {
		limit = len(sorted)
	}

	results := make([]*models.Recommendation, 0, limit)
	for _, r := range sorted[:limit] {
		results = append(results, copyRecommendation(r))
	}
	return results
}

// EnhancementCount 当前增强记录数
func (s *LedgerStore) EnhancementCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.enhancements)
}

// RecommendationCount 当前改进建议数
func (s *LedgerStore) RecommendationCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.recommendations)
}

// Clear 清空两个登记表，仅用于测试隔离与重置，不属于生产执行路径
func (s *LedgerStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.enhancements = make([]*models.Enhancement, 0)
	s.recommendations = make([]*models.Recommendation, 0)
}

// 深拷贝增强记录
func copyEnhancement(e *models.Enhancement) *models.Enhancement {
	enhancementCopy := &models.Enhancement{
		ID:          e.ID,
		Description: e.Description,
		Impact:      e.Impact,
		Priority:    e.Priority,
		Timestamp:   e.Timestamp,
	}
	if e.Metadata != nil {
		enhancementCopy.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			enhancementCopy.Metadata[k] = v
		}
	}
	return enhancementCopy
}

// 深拷贝改进建议
func copyRecommendation(r *models.Recommendation) *models.Recommendation {
	recommendationCopy := *r
	return &recommendationCopy
}
