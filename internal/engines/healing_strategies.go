package engines

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/enhancekeeper/service/internal/models"
	"github.com/google/uuid"
)

// FuncHealingStrategy 基于函数的自愈策略实现
// 运维方通过匹配谓词 + 恢复动作两个函数即可组装领域专属策略
type FuncHealingStrategy struct {
	id          string
	name        string
	description string
	priority    models.Priority
	matcher     func(errorText string) bool
	action      func(ctx context.Context) (bool, error)
}

// NewFuncHealingStrategy 创建函数式自愈策略
func NewFuncHealingStrategy(name, description string, priority models.Priority,
	matcher func(string) bool, action func(context.Context) (bool, error)) *FuncHealingStrategy {
	return &FuncHealingStrategy{
		id:          uuid.New().String(),
		name:        name,
		description: description,
		priority:    priority,
		matcher:     matcher,
		action:      action,
	}
}

func (s *FuncHealingStrategy) ID() string                { return s.id }
func (s *FuncHealingStrategy) Name() string              { return s.name }
func (s *FuncHealingStrategy) Description() string       { return s.description }
func (s *FuncHealingStrategy) Priority() models.Priority { return s.priority }

// Matches 判断错误文本是否命中该策略
func (s *FuncHealingStrategy) Matches(errorText string) bool {
	if s.matcher == nil {
		return false
	}
	return s.matcher(errorText)
}

// Heal 执行恢复动作
func (s *FuncHealingStrategy) Heal(ctx context.Context) (bool, error) {
	if s.action == nil {
		return false, nil
	}
	return s.action(ctx)
}

// 内置策略 -----------------------------------------

// newNetworkRetryStrategy 网络错误重试策略
// 匹配网络/超时/连接拒绝类错误，等待约1秒后报告恢复成功
func newNetworkRetryStrategy() *FuncHealingStrategy {
	return NewFuncHealingStrategy(
		"network-retry",
		"网络错误重试：短暂等待后重新放行",
		models.PriorityCritical,
		matchAnyToken("network", "timeout", "connection refused", "econnrefused", "etimedout"),
		func(ctx context.Context) (bool, error) {
			if err := waitWithContext(ctx, 1*time.Second); err != nil {
				return false, err
			}
			return true, nil
		},
	)
}

// newResourceCleanupStrategy 资源耗尽清理策略
// 匹配内存/文件句柄耗尽类错误，触发GC提示后等待约0.5秒
func newResourceCleanupStrategy() *FuncHealingStrategy {
	return NewFuncHealingStrategy(
		"resource-cleanup",
		"资源耗尽清理：触发GC并短暂等待",
		models.PriorityHigh,
		matchAnyToken("memory", "out of memory", "too many open files", "enomem"),
		func(ctx context.Context) (bool, error) {
			runtime.GC()
			if err := waitWithContext(ctx, 500*time.Millisecond); err != nil {
				return false, err
			}
			return true, nil
		},
	)
}

// newRateLimitBackoffStrategy 限流退避策略
// 匹配限流类错误，等待约5秒让出窗口
func newRateLimitBackoffStrategy() *FuncHealingStrategy {
	return NewFuncHealingStrategy(
		"rate-limit-backoff",
		"限流退避：等待限流窗口后恢复",
		models.PriorityMedium,
		matchAnyToken("rate limit", "429", "too many requests"),
		func(ctx context.Context) (bool, error) {
			if err := waitWithContext(ctx, 5*time.Second); err != nil {
				return false, err
			}
			return true, nil
		},
	)
}

// matchAnyToken 构造大小写不敏感的多token匹配谓词
func matchAnyToken(tokens ...string) func(string) bool {
	return func(errorText string) bool {
		lowered := strings.ToLower(errorText)
		for _, token := range tokens {
			if strings.Contains(lowered, token) {
				return true
			}
		}
		return false
	}
}

// waitWithContext 可取消的退避等待
func waitWithContext(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
