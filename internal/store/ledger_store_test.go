package store

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/enhancekeeper/service/internal/models"
)

// TestAverageEnhancementLevel 验证平均增强级别计算
func TestAverageEnhancementLevel(t *testing.T) {
	ledger := NewLedgerStore()

	// 空账本返回基线值100
	if avg := ledger.AverageEnhancementLevel(); avg != 100 {
		t.Errorf("空账本应返回基线值100，实际: %v", avg)
	}

	// {110, 120} 的平均值为115
	ledger.RecordEnhancement("增强A", models.LevelEnhanced, models.PriorityMedium, nil)
	ledger.RecordEnhancement("增强B", models.LevelExceptional, models.PriorityLow, nil)

	if avg := ledger.AverageEnhancementLevel(); avg != 115 {
		t.Errorf("平均值应为115，实际: %v", avg)
	}
}

// TestTopRecommendations 验证按预估影响降序取前N条
func TestTopRecommendations(t *testing.T) {
	ledger := NewLedgerStore()

	ledger.RecordRecommendation("低", "", models.PriorityLow, 30, "performance", true)
	ledger.RecordRecommendation("高", "", models.PriorityHigh, 95, "performance", true)
	ledger.RecordRecommendation("中", "", models.PriorityMedium, 60, "monitoring", true)

	top := ledger.TopRecommendations(2)
	if len(top) != 2 {
		t.Fatalf("应返回2条建议，实际: %d", len(top))
	}
	if top[0].EstimatedImpact != 95 || top[1].EstimatedImpact != 60 {
		t.Errorf("应按影响降序返回 [95, 60]，实际: [%v, %v]", top[0].EstimatedImpact, top[1].EstimatedImpact)
	}
}

// TestTopRecommendationsStableOrder 相同影响值保持插入顺序
func TestTopRecommendationsStableOrder(t *testing.T) {
	ledger := NewLedgerStore()

	ledger.RecordRecommendation("第一", "", models.PriorityMedium, 50, "performance", true)
	ledger.RecordRecommendation("第二", "", models.PriorityMedium, 50, "performance", true)
	ledger.RecordRecommendation("第三", "", models.PriorityMedium, 50, "performance", true)

	top := ledger.TopRecommendations(3)
	if top[0].Title != "第一" || top[1].Title != "第二" || top[2].Title != "第三" {
		t.Errorf("同影响值应保持插入顺序，实际: %s, %s, %s", top[0].Title, top[1].Title, top[2].Title)
	}
}

// TestTopRecommendationsLimitBounds limit越界时的行为
func TestTopRecommendationsLimitBounds(t *testing.T) {
	ledger := NewLedgerStore()
	ledger.RecordRecommendation("唯一", "", models.PriorityLow, 10, "monitoring", true)

	if got := ledger.TopRecommendations(5); len(got) != 1 {
		t.Errorf("limit超过总数时应返回全部，实际: %d", len(got))
	}
	if got := ledger.TopRecommendations(-1); len(got) != 0 {
		t.Errorf("负limit应返回空列表，实际: %d", len(got))
	}
}

// TestQueryFilters 验证各过滤查询
func TestQueryFilters(t *testing.T) {
	ledger := NewLedgerStore()

	ledger.RecordEnhancement("基线", models.LevelBaseline, models.PriorityLow, nil)
	ledger.RecordEnhancement("增强", models.LevelEnhanced, models.PriorityMedium, nil)
	ledger.RecordEnhancement("卓越", models.LevelExceptional, models.PriorityMedium, nil)

	byPriority := ledger.EnhancementsByPriority(models.PriorityMedium)
	if len(byPriority) != 2 {
		t.Errorf("medium优先级应有2条，实际: %d", len(byPriority))
	}

	byImpact := ledger.EnhancementsByMinImpact(models.LevelEnhanced)
	if len(byImpact) != 2 {
		t.Errorf("影响>=110应有2条，实际: %d", len(byImpact))
	}

	// 顺序保持插入顺序
	if byImpact[0].Description != "增强" || byImpact[1].Description != "卓越" {
		t.Errorf("过滤结果应保持插入顺序")
	}
}

// TestDefensiveCopies 读写均为防御性拷贝，外部修改不影响存储状态
func TestDefensiveCopies(t *testing.T) {
	ledger := NewLedgerStore()

	metadata := map[string]interface{}{"key": "原始值"}
	returned := ledger.RecordEnhancement("带元数据", models.LevelEnhanced, models.PriorityMedium, metadata)

	// 篡改返回的副本
	returned.Description = "被篡改"
	returned.Metadata["key"] = "被篡改"

	stored := ledger.QueryEnhancements(nil)
	if stored[0].Description != "带元数据" {
		t.Errorf("存储的描述不应被外部修改影响: %s", stored[0].Description)
	}
	if stored[0].Metadata["key"] != "原始值" {
		t.Errorf("存储的元数据不应被外部修改影响: %v", stored[0].Metadata["key"])
	}
}

// TestClear 清空仅用于测试隔离
func TestClear(t *testing.T) {
	ledger := NewLedgerStore()

	// 批量写入随机数据
	for i := 0; i < 20; i++ {
		ledger.RecordEnhancement(gofakeit.Sentence(5), models.LevelEnhanced, models.PriorityMedium, nil)
		ledger.RecordRecommendation(gofakeit.BuzzWord(), gofakeit.Sentence(8), models.PriorityLow, gofakeit.Float64Range(0, 100), "performance", true)
	}

	if ledger.EnhancementCount() != 20 || ledger.RecommendationCount() != 20 {
		t.Fatalf("写入数量不符: %d / %d", ledger.EnhancementCount(), ledger.RecommendationCount())
	}

	ledger.Clear()

	if ledger.EnhancementCount() != 0 || ledger.RecommendationCount() != 0 {
		t.Errorf("Clear后两个登记表都应为空")
	}
	if avg := ledger.AverageEnhancementLevel(); avg != 100 {
		t.Errorf("Clear后平均值应回到基线100，实际: %v", avg)
	}
}
