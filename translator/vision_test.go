package translator

import "testing"

// TestParseVisionRuns 解析结构化输出，Markdown 代码块包裹也能处理
func TestParseVisionRuns(t *testing.T) {
	raw := "```json\n[{\"text\":\"你好\",\"box\":{\"x\":10,\"y\":20,\"width\":100,\"height\":14},\"font_size\":12}]\n```"

	runs, err := parseVisionRuns(raw)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("应有 1 个片段，得到 %d 个", len(runs))
	}
	if runs[0].Text != "你好" || runs[0].Box.X != 10 || runs[0].FontSize != 12 {
		t.Errorf("片段内容错误: %+v", runs[0])
	}
	t.Log("✓ 代码块包裹的 JSON 正常解析")
}

// TestParseVisionRunsFiltersInvalid 无效位置与空文本的片段被丢弃，缺省字号补 12
func TestParseVisionRunsFiltersInvalid(t *testing.T) {
	raw := `[
		{"text":"good","box":{"x":0,"y":0,"width":50,"height":10},"font_size":0},
		{"text":"","box":{"x":0,"y":20,"width":50,"height":10},"font_size":12},
		{"text":"zero","box":{"x":0,"y":40,"width":0,"height":0},"font_size":12}
	]`

	runs, err := parseVisionRuns(raw)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("应只保留 1 个有效片段，得到 %d 个", len(runs))
	}
	if runs[0].Text != "good" {
		t.Errorf("保留了错误的片段: %+v", runs[0])
	}
	if runs[0].FontSize != 12 {
		t.Errorf("缺省字号应补为 12，得到 %.1f", runs[0].FontSize)
	}
	t.Log("✓ 无效片段被过滤")
}

// TestParseVisionRunsGarbage 非 JSON 输出报错而不是崩溃
func TestParseVisionRunsGarbage(t *testing.T) {
	if _, err := parseVisionRuns("抱歉，我无法处理这张图片。"); err == nil {
		t.Fatal("非 JSON 输出应报错")
	}
	t.Log("✓ 无效输出被拒绝")
}
