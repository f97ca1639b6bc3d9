package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/enhancekeeper/service/internal/config"
	"github.com/enhancekeeper/service/internal/engines"
	"github.com/enhancekeeper/service/internal/models"
)

// testConfig 测试用默认配置
func testConfig() *config.Config {
	return &config.Config{
		ServiceName:                 "enhance-keeper-test",
		MinEnhancementLevel:         110,
		EnableSelfHealing:           true,
		EnableSelfLearning:          true,
		EnableContinuousImprovement: true,
		MonitoringInterval:          time.Minute,
		MaxRecommendations:          50,
	}
}

// successOperation 返回固定数据的成功操作
func successOperation(data interface{}) func(ctx context.Context) (interface{}, error) {
	return func(ctx context.Context) (interface{}, error) {
		return data, nil
	}
}

// TestExecuteSuccess 成功执行产出>=1条增强与恰好2条建议
func TestExecuteSuccess(t *testing.T) {
	pipeline := NewPipelineService(testConfig())

	result, err := pipeline.Execute(context.Background(), successOperation("结果数据"), "test-op")
	if err != nil {
		t.Fatalf("执行不应报错: %v", err)
	}

	if !result.Success {
		t.Error("结果应标记成功")
	}
	if result.Status != models.StatusEnhanced {
		t.Errorf("有增强时状态应为enhanced，实际: %s", result.Status)
	}
	if result.Data != "结果数据" {
		t.Errorf("数据应原样返回，实际: %v", result.Data)
	}

	// 非空返回值：enhanced/medium + exceptional/low 两条增强
	if len(result.Enhancements) != 2 {
		t.Fatalf("非空返回值应产出2条增强，实际: %d", len(result.Enhancements))
	}
	if result.Enhancements[0].Impact != models.LevelEnhanced || result.Enhancements[0].Priority != models.PriorityMedium {
		t.Errorf("第一条增强应为enhanced/medium: %+v", result.Enhancements[0])
	}
	if result.Enhancements[1].Impact != models.LevelExceptional || result.Enhancements[1].Priority != models.PriorityLow {
		t.Errorf("第二条增强应为exceptional/low: %+v", result.Enhancements[1])
	}

	// 恰好2条建议：性能75 + 监控50
	if len(result.Recommendations) != 2 {
		t.Fatalf("应产出恰好2条建议，实际: %d", len(result.Recommendations))
	}
	if result.Recommendations[0].EstimatedImpact != 75 || result.Recommendations[0].Category != "performance" {
		t.Errorf("第一条建议应为performance/75: %+v", result.Recommendations[0])
	}
	if result.Recommendations[1].EstimatedImpact != 50 || result.Recommendations[1].Category != "monitoring" {
		t.Errorf("第二条建议应为monitoring/50: %+v", result.Recommendations[1])
	}

	if result.Metadata.Version == "" {
		t.Error("元信息应携带版本号")
	}
}

// TestExecuteNilData 返回nil的成功操作只产出1条增强
func TestExecuteNilData(t *testing.T) {
	pipeline := NewPipelineService(testConfig())

	result, err := pipeline.Execute(context.Background(), successOperation(nil), "nil-op")
	if err != nil {
		t.Fatalf("执行不应报错: %v", err)
	}

	if len(result.Enhancements) != 1 {
		t.Errorf("nil返回值应只产出1条增强，实际: %d", len(result.Enhancements))
	}
	if result.Status != models.StatusEnhanced {
		t.Errorf("仍有增强，状态应为enhanced: %s", result.Status)
	}
}

// TestExecuteContinuousImprovementDisabled 关闭持续改进后零增强零建议
func TestExecuteContinuousImprovementDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableContinuousImprovement = false
	pipeline := NewPipelineService(cfg)

	result, err := pipeline.Execute(context.Background(), successOperation("数据"), "plain-op")
	if err != nil {
		t.Fatalf("执行不应报错: %v", err)
	}

	if len(result.Enhancements) != 0 || len(result.Recommendations) != 0 {
		t.Errorf("关闭持续改进应产出0增强0建议，实际: %d/%d",
			len(result.Enhancements), len(result.Recommendations))
	}
	if result.Status != models.StatusSuccess {
		t.Errorf("无增强时状态应为success，实际: %s", result.Status)
	}
	if pipeline.Ledger().EnhancementCount() != 0 {
		t.Errorf("账本也不应有记录")
	}
}

// TestExecuteMaxRecommendationsTruncation 截断返回列表而非账本
func TestExecuteMaxRecommendationsTruncation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRecommendations = 1
	pipeline := NewPipelineService(cfg)

	result, err := pipeline.Execute(context.Background(), successOperation("数据"), "cap-op")
	if err != nil {
		t.Fatalf("执行不应报错: %v", err)
	}

	if len(result.Recommendations) != 1 {
		t.Errorf("返回列表应被截断为1条，实际: %d", len(result.Recommendations))
	}
	if pipeline.Ledger().RecommendationCount() != 2 {
		t.Errorf("账本应保留完整2条，实际: %d", pipeline.Ledger().RecommendationCount())
	}
}

// TestExecuteFailureHealingDisabled 自愈关闭时原始错误原样抛回
func TestExecuteFailureHealingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSelfHealing = false
	pipeline := NewPipelineService(cfg)

	cause := errors.New("业务逻辑失败")
	result, err := pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, cause
	}, "failing-op")

	if err != cause {
		t.Errorf("应原样返回原始错误，实际: %v", err)
	}
	if result != nil {
		t.Errorf("失败时不应返回结果")
	}
}

// TestExecuteFailureNoStrategyMatch 自愈开启但无策略匹配时错误仍抛回
func TestExecuteFailureNoStrategyMatch(t *testing.T) {
	pipeline := NewPipelineService(testConfig())

	cause := errors.New("无法识别的业务错误")
	_, err := pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, cause
	}, "unmatched-op")

	if err != cause {
		t.Errorf("无策略匹配时应返回原始错误，实际: %v", err)
	}

	// 引擎应记录一次无匹配的失败尝试
	attempts := pipeline.Healer().Attempts()
	if len(attempts) != 1 || attempts[0].StrategyUsed != "none" {
		t.Errorf("应记录strategyUsed=none的尝试: %+v", attempts)
	}
}

// TestExecuteFailureHealed 自愈成功返回合成成功结果
func TestExecuteFailureHealed(t *testing.T) {
	pipeline := NewPipelineService(testConfig())

	// 注册即时恢复的自定义策略
	pipeline.Healer().RegisterStrategy(engines.NewFuncHealingStrategy(
		"db-recovery", "数据库恢复", models.PriorityCritical,
		func(text string) bool { return text == "db offline" },
		func(ctx context.Context) (bool, error) { return true, nil },
	))

	result, err := pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("db offline")
	}, "healed-op")

	if err != nil {
		t.Fatalf("自愈成功时不应返回错误: %v", err)
	}
	if !result.Success {
		t.Error("自愈结果应标记成功")
	}

	healed, ok := result.Data.(*models.HealedData)
	if !ok {
		t.Fatalf("数据体应为HealedData，实际: %T", result.Data)
	}
	if !healed.Healed || healed.OriginalError != "db offline" {
		t.Errorf("healed标志与原始错误文本不符: %+v", healed)
	}

	if len(result.Enhancements) != 0 {
		t.Errorf("自愈结果不应携带增强，实际: %d", len(result.Enhancements))
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("自愈结果应携带1条建议，实际: %d", len(result.Recommendations))
	}
	rec := result.Recommendations[0]
	if rec.Title != "Self-Healing Action" || rec.Priority != models.PriorityHigh || rec.EstimatedImpact != 90 {
		t.Errorf("自愈建议应为Self-Healing Action/high/90: %+v", rec)
	}
}

// TestExecuteHealedImprovementDisabled 关闭持续改进后自愈路径同样零建议
func TestExecuteHealedImprovementDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableContinuousImprovement = false
	pipeline := NewPipelineService(cfg)

	pipeline.Healer().RegisterStrategy(engines.NewFuncHealingStrategy(
		"db-recovery", "数据库恢复", models.PriorityCritical,
		func(text string) bool { return text == "db offline" },
		func(ctx context.Context) (bool, error) { return true, nil },
	))

	result, err := pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("db offline")
	}, "healed-plain-op")

	if err != nil {
		t.Fatalf("自愈成功时不应返回错误: %v", err)
	}
	if healed, ok := result.Data.(*models.HealedData); !ok || !healed.Healed {
		t.Fatalf("数据体仍应为healed结果: %v", result.Data)
	}

	// 持续改进关闭：任何执行结果都不产出建议，自愈路径也不例外
	if len(result.Recommendations) != 0 {
		t.Errorf("关闭持续改进时自愈结果应产出0条建议，实际: %d", len(result.Recommendations))
	}
	if pipeline.Ledger().RecommendationCount() != 0 {
		t.Errorf("账本也不应有建议记录，实际: %d", pipeline.Ledger().RecommendationCount())
	}
}

// TestMetricsInvariant totalOperations恒等于成功数+失败数
func TestMetricsInvariant(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSelfHealing = false
	pipeline := NewPipelineService(cfg)

	for i := 0; i < 3; i++ {
		pipeline.Execute(context.Background(), successOperation(i), "ok-op")
	}
	for i := 0; i < 2; i++ {
		pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("失败")
		}, "bad-op")
	}

	metrics := pipeline.GetMetrics()
	if metrics.TotalOperations != 5 {
		t.Errorf("总操作数应为5，实际: %d", metrics.TotalOperations)
	}
	if metrics.TotalOperations != metrics.SuccessfulOperations+metrics.FailedOperations {
		t.Errorf("不变式被破坏: total=%d, success=%d, failed=%d",
			metrics.TotalOperations, metrics.SuccessfulOperations, metrics.FailedOperations)
	}
	if metrics.EnhancedOperations != 3 {
		t.Errorf("增强操作数应为3，实际: %d", metrics.EnhancedOperations)
	}
	if metrics.TotalRecommendations != 6 {
		t.Errorf("累计建议数应为6，实际: %d", metrics.TotalRecommendations)
	}
}

// TestHealthCheckHealthy 成功率>=80且uptime>0时healthy
func TestHealthCheckHealthy(t *testing.T) {
	pipeline := NewPipelineService(testConfig())

	for i := 0; i < 5; i++ {
		pipeline.Execute(context.Background(), successOperation(i), "ok-op")
	}

	check := pipeline.GetHealthCheck()
	if check.Status != "healthy" {
		t.Errorf("全部成功应为healthy，实际: %s (%v)", check.Status, check.Issues)
	}
	if check.SuccessRate != 100 {
		t.Errorf("成功率应为100，实际: %v", check.SuccessRate)
	}
}

// TestHealthCheckDegraded 成功率<80时即使uptime>0也是degraded
func TestHealthCheckDegraded(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSelfHealing = false
	pipeline := NewPipelineService(cfg)

	pipeline.Execute(context.Background(), successOperation("ok"), "ok-op")
	for i := 0; i < 4; i++ {
		pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("失败")
		}, "bad-op")
	}

	check := pipeline.GetHealthCheck()
	if check.Status != "degraded" {
		t.Errorf("成功率20%%应为degraded，实际: %s", check.Status)
	}
	if check.UptimeSeconds <= 0 {
		t.Errorf("uptime应大于0，实际: %v", check.UptimeSeconds)
	}

	found := false
	for _, issue := range check.Issues {
		if issue == "Success rate below threshold" {
			found = true
		}
	}
	if !found {
		t.Errorf("问题列表应包含成功率告警，实际: %v", check.Issues)
	}
}

// TestSelfLearningFeed 每次执行记录一次模式观测，空名称归入operation
func TestSelfLearningFeed(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSelfHealing = false
	pipeline := NewPipelineService(cfg)

	pipeline.Execute(context.Background(), successOperation("ok"), "named-op")
	pipeline.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("失败")
	}, "named-op")
	pipeline.Execute(context.Background(), successOperation("ok"), "")

	named, exists := pipeline.Learner().GetPattern("named-op")
	if !exists || named.Frequency != 2 || named.SuccessRate != 0.5 {
		t.Errorf("named-op应为频次2/成功率0.5，实际: %+v", named)
	}

	fallback, exists := pipeline.Learner().GetPattern("operation")
	if !exists || fallback.Frequency != 1 {
		t.Errorf("空名称应归入operation模式，实际: %+v", fallback)
	}
}

// TestSelfLearningDisabled 关闭自学习后不记录模式
func TestSelfLearningDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSelfLearning = false
	pipeline := NewPipelineService(cfg)

	pipeline.Execute(context.Background(), successOperation("ok"), "silent-op")

	if len(pipeline.Learner().Patterns()) != 0 {
		t.Errorf("关闭自学习不应记录任何模式")
	}
}

// TestExecuteNilOperation 空操作直接报错
func TestExecuteNilOperation(t *testing.T) {
	pipeline := NewPipelineService(testConfig())

	if _, err := pipeline.Execute(context.Background(), nil, "nil-op"); err == nil {
		t.Error("空操作应返回错误")
	}
}
