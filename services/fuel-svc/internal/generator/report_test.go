// services/fuel-svc/internal/generator/report_test.go

package generator

import (
	"context"
	"strings"
	"testing"
)

func TestReportGenerator_Generate(t *testing.T) {
	g := NewReportGenerator()

	result, err := g.Generate(context.Background(), sampleData())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	report := string(result)
	for _, want := range []string{
		"# 燃費月次レポート\n",
		"生成日時: 2024/3/1 09:30:00\n",
		"対象期間: 2024-01-10 ～ 2024-02-10\n",
		"## 月別サマリー",
		"### 2024年02月\n- 給油回数: 1回\n- 総給油量: 35.0L\n- 総費用: ¥5,250\n- 平均単価: ¥150.0/L\n- 走行距離: 420.0km\n- 平均燃費: 12.0km/L\n",
		"### 2024年01月\n- 給油回数: 2回\n- 総給油量: 70.0L\n- 総費用: ¥10,800\n",
		"## 全期間統計\n- 総給油回数: 3回\n- 総給油量: 105.0L\n- 総費用: ¥16,050\n- 全期間平均単価: ¥152.9/L",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report should contain %q\n%s", want, report)
		}
	}

	// Месяцы от новых к старым
	if strings.Index(report, "2024年02月") > strings.Index(report, "2024年01月") {
		t.Error("months should be listed newest first")
	}
}

func TestReportGenerator_SkipsZeroEfficiency(t *testing.T) {
	g := NewReportGenerator()
	data := &ExportData{Records: sampleRecords()[:1], GeneratedAt: fixedTime}

	result, err := g.Generate(context.Background(), data)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Contains(string(result), "平均燃費") {
		t.Errorf("month without distance should not print efficiency:\n%s", result)
	}
}

func TestReportGenerator_Empty(t *testing.T) {
	assertEmptyError(t, NewReportGenerator())
}
