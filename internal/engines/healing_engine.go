package engines

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/enhancekeeper/service/internal/interfaces"
	"github.com/enhancekeeper/service/internal/models"
	"github.com/google/uuid"
)

// 自愈历史保留上限，超出后FIFO淘汰最旧记录
const maxAttemptHistory = 100

// HealingEngine 自愈引擎
// 按优先级排序的策略表 + 首个匹配即执行的线性扫描
// 优先级排序的独立可插拔策略让运维方无需改引擎即可组合领域专属的恢复手段
type HealingEngine struct {
	strategies []interfaces.HealingStrategy
	attempts   []*models.HealingAttempt
	healing    bool // 状态机只有两态：空闲 / 自愈中
	mutex      sync.RWMutex
}

// NewHealingEngine 创建自愈引擎，按优先级顺序注册内置策略
func NewHealingEngine() *HealingEngine {
	engine := &HealingEngine{
		strategies: make([]interfaces.HealingStrategy, 0),
		attempts:   make([]*models.HealingAttempt, 0),
	}

	// 内置策略：网络重试、资源清理、限流退避
	engine.RegisterStrategy(newNetworkRetryStrategy())
	engine.RegisterStrategy(newResourceCleanupStrategy())
	engine.RegisterStrategy(newRateLimitBackoffStrategy())

	return engine
}

// RegisterStrategy 注册策略并立即重排整个策略表
// 每次注册后重排（而非查找时才排），同优先级按插入顺序稳定排列
func (e *HealingEngine) RegisterStrategy(strategy interfaces.HealingStrategy) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.strategies = append(e.strategies, strategy)
	sort.SliceStable(e.strategies, func(i, j int) bool {
		return e.strategies[i].Priority().Rank() < e.strategies[j].Priority().Rank()
	})

	log.Printf("🩹 [自愈引擎] 策略已注册: %s (优先级: %s, 当前策略数: %d)",
		strategy.Name(), strategy.Priority(), len(e.strategies))
}

// Strategies 返回当前策略表的快照
func (e *HealingEngine) Strategies() []interfaces.HealingStrategy {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	snapshot := make([]interfaces.HealingStrategy, len(e.strategies))
	copy(snapshot, e.strategies)
	return snapshot
}

// Heal 尝试从错误中恢复，返回是否恢复成功
// 按优先级扫描首个匹配的策略并执行其恢复动作；
// 动作抛出的错误在引擎内部吞掉并计为失败尝试，绝不向上传播；
// 无匹配策略时不等待，直接记录 strategyUsed="none" 的失败尝试
func (e *HealingEngine) Heal(ctx context.Context, cause error) bool {
	if cause == nil {
		return false
	}
	description := cause.Error()

	e.mutex.Lock()
	e.healing = true
	matched := e.findStrategyLocked(description)
	e.mutex.Unlock()

	defer func() {
		e.mutex.Lock()
		e.healing = false
		e.mutex.Unlock()
	}()

	if matched == nil {
		log.Printf("🩹 [自愈引擎] ⚠️ 无匹配策略: %s", description)
		e.recordAttempt(description, "none", false, 0)
		return false
	}

	log.Printf("🩹 [自愈引擎] 匹配到策略 %s，开始恢复: %s", matched.Name(), description)

	started := time.Now()
	success, err := matched.Heal(ctx)
	elapsed := time.Since(started)

	if err != nil {
		log.Printf("🩹 [自愈引擎] ❌ 策略 %s 执行失败: %v", matched.Name(), err)
		success = false
	} else if success {
		log.Printf("🩹 [自愈引擎] ✅ 策略 %s 恢复成功 (耗时: %v)", matched.Name(), elapsed)
	}

	e.recordAttempt(description, matched.Name(), success, elapsed)
	return success
}

// findStrategyLocked 按优先级顺序查找首个匹配的策略，调用方需持锁
func (e *HealingEngine) findStrategyLocked(description string) interfaces.HealingStrategy {
	for _, strategy := range e.strategies {
		if strategy.Matches(description) {
			return strategy
		}
	}
	return nil
}

// recordAttempt 记录一次自愈尝试，历史严格限制在最近100条
func (e *HealingEngine) recordAttempt(description, strategyName string, success bool, duration time.Duration) {
	attempt := &models.HealingAttempt{
		ID:                 uuid.New().String(),
		Timestamp:          time.Now().UnixMilli(),
		ErrorDescription:   description,
		StrategyUsed:       strategyName,
		Success:            success,
		RecoveryDurationMs: duration.Milliseconds(),
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.attempts = append(e.attempts, attempt)
	if len(e.attempts) > maxAttemptHistory {
		// FIFO淘汰最旧的记录
		e.attempts = e.attempts[len(e.attempts)-maxAttemptHistory:]
	}
}

// Attempts 返回自愈历史的拷贝，保持时间顺序
func (e *HealingEngine) Attempts() []*models.HealingAttempt {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	results := make([]*models.HealingAttempt, 0, len(e.attempts))
	for _, a := range e.attempts {
		attemptCopy := *a
		results = append(results, &attemptCopy)
	}
	return results
}

// SuccessRate 历史尝试中成功的百分比，历史为空时返回0
func (e *HealingEngine) SuccessRate() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if len(e.attempts) == 0 {
		return 0
	}

	succeeded := 0
	for _, a := range e.attempts {
		if a.Success {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(e.attempts)) * 100
}

// IsHealing 当前是否处于自愈中状态
func (e *HealingEngine) IsHealing() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.healing
}
