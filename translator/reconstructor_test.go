package translator

import (
	"fmt"
	"testing"
)

// failOnProvider 对特定文本失败的后端
type failOnProvider struct {
	failText string
	calls    int
}

func (p *failOnProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	p.calls++
	if text == p.failText {
		return "", fmt.Errorf("模拟后端拒绝: %q", text)
	}
	return "[译]" + text, nil
}

func (p *failOnProvider) GetName() string { return "fail-on" }

func newTestReconstructor(p Provider) *Reconstructor {
	client, _ := newTestClient(p)
	return NewReconstructor(client, nil, NewLayoutFitter(estimateMetrics()))
}

func textPage() *PageContent {
	return &PageContent{
		Number: 0,
		Width:  595,
		Height: 842,
		TextBlocks: []TextBlock{
			{Text: "First", Box: BoundingBox{X: 50, Y: 50, Width: 200, Height: 20}, FontSize: 12},
			{Text: "Second", Box: BoundingBox{X: 50, Y: 90, Width: 200, Height: 20}, FontSize: 12},
			{Text: "Third", Box: BoundingBox{X: 50, Y: 130, Width: 200, Height: 20}, FontSize: 12},
		},
		Images: []ImageRegion{
			{Name: "Im1", Box: BoundingBox{X: 50, Y: 200, Width: 100, Height: 100}, Data: []byte("png-bytes")},
		},
	}
}

// TestExtractUnitsOrder 单元顺序固定：先文本块后图片区域
func TestExtractUnitsOrder(t *testing.T) {
	rec := newTestReconstructor(&fakeProvider{})
	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}

	units := rec.ExtractUnits(textPage(), opts)
	if len(units) != 4 {
		t.Fatalf("应有 4 个单元，得到 %d 个", len(units))
	}
	for i := 0; i < 3; i++ {
		if units[i].Kind != UnitTextBlock {
			t.Errorf("单元 %d 应为文本块", i)
		}
	}
	if units[3].Kind != UnitImageRegion {
		t.Error("最后一个单元应为图片区域")
	}
	if units[0].SourceText != "First" || units[2].SourceText != "Third" {
		t.Error("文本块顺序错乱")
	}
	t.Logf("✓ %d 个单元顺序正确", len(units))
}

// TestReconstructPagePreservesOrder 结果与单元等长且按下标对应
func TestReconstructPagePreservesOrder(t *testing.T) {
	rec := newTestReconstructor(&fakeProvider{})
	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}

	page := textPage()
	job := &PageJob{Number: 0, Width: page.Width, Height: page.Height, Units: rec.ExtractUnits(page, opts)}
	rec.ReconstructPage(job, opts)

	if len(job.Results) != len(job.Units) {
		t.Fatalf("结果数量不匹配: %d != %d", len(job.Results), len(job.Units))
	}
	for i, res := range job.Results {
		if res.Unit != job.Units[i] {
			t.Errorf("结果 %d 未按下标对应", i)
		}
	}
	if job.Results[0].TranslatedText != "[译]First" {
		t.Errorf("第一个结果错误: %q", job.Results[0].TranslatedText)
	}
	if job.Results[1].TranslatedText != "[译]Second" {
		t.Errorf("第二个结果错误: %q", job.Results[1].TranslatedText)
	}
	t.Logf("✓ %d 个结果顺序一致", len(job.Results))
}

// TestReconstructPageUnitDegradation 单个单元失败只降级该单元，其余成功
func TestReconstructPageUnitDegradation(t *testing.T) {
	provider := &failOnProvider{failText: "Second"}
	rec := newTestReconstructor(provider)
	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}

	page := textPage()
	job := &PageJob{Number: 0, Width: page.Width, Height: page.Height, Units: rec.ExtractUnits(page, opts)}
	rec.ReconstructPage(job, opts)

	if job.Results[0].Status != StatusSuccess {
		t.Errorf("第一个单元应成功，得到 %s", job.Results[0].Status)
	}
	if job.Results[1].Status != StatusDegraded {
		t.Errorf("第二个单元应降级，得到 %s", job.Results[1].Status)
	}
	// 降级单元保留原文，且排版方案照常计算，仍可绘制
	if job.Results[1].TranslatedText != "Second" {
		t.Errorf("降级单元应保留原文，得到 %q", job.Results[1].TranslatedText)
	}
	if job.Results[1].Fit == nil {
		t.Error("降级单元仍应有排版方案")
	}
	if job.Results[2].Status != StatusSuccess {
		t.Errorf("第三个单元应成功，得到 %s", job.Results[2].Status)
	}
	t.Log("✓ 单元失败被就地降级，不影响其他单元")
}

// TestReconstructPageSkipsInvalid 无效包围盒与空白文本跳过，不调用后端
func TestReconstructPageSkipsInvalid(t *testing.T) {
	provider := &fakeProvider{}
	rec := newTestReconstructor(provider)
	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}

	page := &PageContent{
		Number: 0, Width: 595, Height: 842,
		TextBlocks: []TextBlock{
			{Text: "valid", Box: BoundingBox{X: 0, Y: 0, Width: 100, Height: 20}, FontSize: 12},
			{Text: "zero-box", Box: BoundingBox{X: 0, Y: 0, Width: 0, Height: 0}, FontSize: 12},
			{Text: "   ", Box: BoundingBox{X: 0, Y: 40, Width: 100, Height: 20}, FontSize: 12},
		},
	}
	job := &PageJob{Number: 0, Width: page.Width, Height: page.Height, Units: rec.ExtractUnits(page, opts)}
	rec.ReconstructPage(job, opts)

	if job.Results[0].Status != StatusSuccess {
		t.Errorf("有效单元应成功，得到 %s", job.Results[0].Status)
	}
	if job.Results[1].Status != StatusSkipped {
		t.Errorf("零面积单元应跳过，得到 %s", job.Results[1].Status)
	}
	if job.Results[2].Status != StatusSkipped {
		t.Errorf("空白文本应跳过，得到 %s", job.Results[2].Status)
	}
	if provider.calls != 1 {
		t.Errorf("后端应只被调用 1 次，实际 %d 次", provider.calls)
	}
	t.Log("✓ 无效单元跳过且零调用")
}

// TestReconstructPageImageDisabled 未启用图片翻译时图片单元原样保留
func TestReconstructPageImageDisabled(t *testing.T) {
	rec := newTestReconstructor(&fakeProvider{})
	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true, TranslateImages: false}

	page := textPage()
	job := &PageJob{Number: 0, Width: page.Width, Height: page.Height, Units: rec.ExtractUnits(page, opts)}
	rec.ReconstructPage(job, opts)

	imgRes := job.Results[3]
	if imgRes.Status != StatusSkipped {
		t.Errorf("图片单元应跳过，得到 %s", imgRes.Status)
	}
	if string(imgRes.ImageData) != "png-bytes" {
		t.Error("图片数据应原样保留")
	}
	t.Log("✓ 图片单元原样透传")
}

// TestReconstructPageTextDisabled 未启用文本翻译时文本单元按原文排版
func TestReconstructPageTextDisabled(t *testing.T) {
	provider := &fakeProvider{}
	rec := newTestReconstructor(provider)
	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: false}

	page := textPage()
	job := &PageJob{Number: 0, Width: page.Width, Height: page.Height, Units: rec.ExtractUnits(page, opts)}
	rec.ReconstructPage(job, opts)

	if provider.calls != 0 {
		t.Errorf("后端被调用了 %d 次，应为 0", provider.calls)
	}
	if job.Results[0].TranslatedText != "First" || job.Results[0].Fit == nil {
		t.Error("原文应带排版方案透传")
	}
	t.Log("✓ 关闭文本翻译时零调用")
}
