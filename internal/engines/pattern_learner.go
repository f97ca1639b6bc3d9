package engines

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/enhancekeeper/service/internal/models"
	"github.com/google/uuid"
)

// 洞察生成阈值
const (
	insightMinFrequency      = 5   // 低于该频次的模式不产出洞察
	highPerformerThreshold   = 0.9 // 成功率不低于该值时产出 high-performer
	needsImprovementCeiling  = 0.5 // 成功率低于该值时产出 needs-improvement
	defaultSuccessfulMinRate = 0.8 // GetSuccessfulPatterns 的默认过滤线
)

// PatternLearner 模式学习器
// 这里的"学习"是确定性的运行平均统计，不是训练模型
type PatternLearner struct {
	patterns map[string]*models.LearningPattern
	insights []*models.LearningInsight
	emitted  map[string]bool // pattern+category 去重表，避免重复洞察
	mutex    sync.RWMutex
}

// NewPatternLearner 创建模式学习器
func NewPatternLearner() *PatternLearner {
	return &PatternLearner{
		patterns: make(map[string]*models.LearningPattern),
		insights: make([]*models.LearningInsight, 0),
		emitted:  make(map[string]bool),
	}
}

// RecordPattern 记录一次命名事件的观测，返回模式的当前快照
// 首次观测创建模式；重复观测原地更新：
// newSuccessRate = (successRate*frequency + outcome) / (frequency+1)
// 即不存完整历史也与全量重算完全等价的运行加权平均
func (l *PatternLearner) RecordPattern(name string, success bool, metadata map[string]interface{}) *models.LearningPattern {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now().UnixMilli()
	pattern, exists := l.patterns[name]

	if !exists {
		rate := 0.0
		if success {
			rate = 1.0
		}
		pattern = &models.LearningPattern{
			ID:          uuid.New().String(),
			Pattern:     name,
			Frequency:   1,
			SuccessRate: rate,
			LastSeen:    now,
		}
		l.patterns[name] = pattern
	} else {
		outcome := 0.0
		if success {
			outcome = 1.0
		}
		newFrequency := pattern.Frequency + 1
		pattern.SuccessRate = (pattern.SuccessRate*float64(pattern.Frequency) + outcome) / float64(newFrequency)
		pattern.Frequency = newFrequency
		pattern.LastSeen = now
	}

	// 元数据浅合并，同名键以新值覆盖
	if metadata != nil {
		if pattern.Metadata == nil {
			pattern.Metadata = make(map[string]interface{}, len(metadata))
		}
		for k, v := range metadata {
			pattern.Metadata[k] = v
		}
	}

	return copyPattern(pattern)
}

// GenerateInsights 对当前所有模式执行一轮洞察生成，返回本轮新增的洞察
// 仅频次>=5的模式参与判定；同一模式+类别的洞察只产出一次
func (l *PatternLearner) GenerateInsights() []*models.LearningInsight {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	// map遍历顺序随机，按模式名排序保证输出确定
	names := make([]string, 0, len(l.patterns))
	for name := range l.patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	generated := make([]*models.LearningInsight, 0)
	for _, name := range names {
		pattern := l.patterns[name]
		if pattern.Frequency < insightMinFrequency {
			continue
		}

		switch {
		case pattern.SuccessRate >= highPerformerThreshold:
			insight := l.emitInsightLocked(pattern, models.InsightCategoryHighPerformer,
				pattern.SuccessRate,
				fmt.Sprintf("模式 %s 表现优异：%d 次观测成功率 %.0f%%", pattern.Pattern, pattern.Frequency, pattern.SuccessRate*100))
			if insight != nil {
				generated = append(generated, insight)
			}
		case pattern.SuccessRate < needsImprovementCeiling:
			insight := l.emitInsightLocked(pattern, models.InsightCategoryNeedsImprovement,
				1-pattern.SuccessRate,
				fmt.Sprintf("模式 %s 需要改进：%d 次观测成功率仅 %.0f%%", pattern.Pattern, pattern.Frequency, pattern.SuccessRate*100))
			if insight != nil {
				generated = append(generated, insight)
			}
		}
	}

	if len(generated) > 0 {
		log.Printf("🧠 [模式学习器] 本轮生成 %d 条洞察 (累计: %d)", len(generated), len(l.insights))
	}
	return generated
}

// emitInsightLocked 追加一条洞察并登记去重键，已产出过则返回nil，调用方需持锁
func (l *PatternLearner) emitInsightLocked(pattern *models.LearningPattern, category string, confidence float64, text string) *models.LearningInsight {
	key := pattern.Pattern + "|" + category
	if l.emitted[key] {
		return nil
	}
	l.emitted[key] = true

	insight := &models.LearningInsight{
		ID:         uuid.New().String(),
		Text:       text,
		Confidence: confidence,
		Category:   category,
		Timestamp:  time.Now().UnixMilli(),
	}
	l.insights = append(l.insights, insight)

	insightCopy := *insight
	return &insightCopy
}

// GetPattern 按名称获取模式快照
func (l *PatternLearner) GetPattern(name string) (*models.LearningPattern, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	pattern, exists := l.patterns[name]
	if !exists {
		return nil, false
	}
	return copyPattern(pattern), true
}

// Patterns 返回全部模式的快照，按模式名排序
func (l *PatternLearner) Patterns() []*models.LearningPattern {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	names := make([]string, 0, len(l.patterns))
	for name := range l.patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]*models.LearningPattern, 0, len(names))
	for _, name := range names {
		results = append(results, copyPattern(l.patterns[name]))
	}
	return results
}

// GetSuccessfulPatterns 过滤出成功率不低于minRate的模式，无频次下限
// minRate<=0 时使用默认值0.8
func (l *PatternLearner) GetSuccessfulPatterns(minRate float64) []*models.LearningPattern {
	if minRate <= 0 {
		minRate = defaultSuccessfulMinRate
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	names := make([]string, 0, len(l.patterns))
	for name := range l.patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]*models.LearningPattern, 0)
	for _, name := range names {
		if pattern := l.patterns[name]; pattern.SuccessRate >= minRate {
			results = append(results, copyPattern(pattern))
		}
	}
	return results
}

// Insights 返回累计洞察日志的拷贝
func (l *PatternLearner) Insights() []*models.LearningInsight {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	results := make([]*models.LearningInsight, 0, len(l.insights))
	for _, insight := range l.insights {
		insightCopy := *insight
		results = append(results, &insightCopy)
	}
	return results
}

// Clear 清空模式与洞察
func (l *PatternLearner) Clear() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.patterns = make(map[string]*models.LearningPattern)
	l.insights = make([]*models.LearningInsight, 0)
	l.emitted = make(map[string]bool)
}

// 深拷贝学习模式
func copyPattern(p *models.LearningPattern) *models.LearningPattern {
	patternCopy := &models.LearningPattern{
		ID:          p.ID,
		Pattern:     p.Pattern,
		Frequency:   p.Frequency,
		SuccessRate: p.SuccessRate,
		LastSeen:    p.LastSeen,
	}
	if p.Metadata != nil {
		patternCopy.Metadata = make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			patternCopy.Metadata[k] = v
		}
	}
	return patternCopy
}
