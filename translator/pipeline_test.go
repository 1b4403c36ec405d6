package translator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// capturingProvider 记录收到的文本
type capturingProvider struct {
	texts []string
}

func (p *capturingProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	p.texts = append(p.texts, text)
	return "[译]" + text, nil
}

func (p *capturingProvider) GetName() string { return "capturing" }

func newTestOrchestrator(p Provider) *Orchestrator {
	client, _ := newTestClient(p)
	rec := NewReconstructor(client, nil, NewLayoutFitter(estimateMetrics()))
	return NewOrchestrator(rec, NewCompositor(""))
}

// samplePDF 生成一份单页测试文档
func samplePDF(t *testing.T, text string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(50, 100, text)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("生成测试文档失败: %v", err)
	}
	return buf.Bytes()
}

// TestValidateImageTranslationWithoutOCR 图片翻译缺 OCR 在任何页面处理之前报配置错误
func TestValidateImageTranslationWithoutOCR(t *testing.T) {
	provider := &capturingProvider{}
	orch := newTestOrchestrator(provider)

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true, TranslateImages: true}

	progressCalls := 0
	_, err := orch.Run(samplePDF(t, "Hello"), opts, func(page, total int, percent float64) {
		progressCalls++
	})
	if err == nil {
		t.Fatal("应报配置错误")
	}
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("错误链应包含 ErrEngineUnavailable: %v", err)
	}
	if progressCalls != 0 {
		t.Errorf("不应处理任何页面，进度被回调了 %d 次", progressCalls)
	}
	if len(provider.texts) != 0 {
		t.Errorf("不应产生翻译调用，实际 %d 次", len(provider.texts))
	}
	t.Log("✓ 配置错误在处理任何页面之前暴露")
}

// TestValidateVisionWithoutBackend 视觉引擎未配置后端时报配置错误
func TestValidateVisionWithoutBackend(t *testing.T) {
	orch := newTestOrchestrator(&capturingProvider{})

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true, Engine: EngineVision}
	if err := orch.Validate(opts); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("应报 ErrEngineUnavailable: %v", err)
	}
	t.Log("✓ 视觉引擎缺后端被拒绝")
}

// TestValidateUnknownEngine 未知引擎被拒绝
func TestValidateUnknownEngine(t *testing.T) {
	orch := newTestOrchestrator(&capturingProvider{})

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, Engine: "quantum"}
	if err := orch.Validate(opts); err == nil {
		t.Fatal("未知引擎应报错")
	}
	t.Log("✓ 未知引擎被拒绝")
}

// TestRunUnreadableDocument 非 PDF 输入使任务不启动
func TestRunUnreadableDocument(t *testing.T) {
	orch := newTestOrchestrator(&capturingProvider{})

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}
	_, err := orch.Run([]byte("this is not a pdf"), opts, nil)
	if err == nil {
		t.Fatal("应报文档错误")
	}
	if !errors.Is(err, ErrDocumentUnreadable) {
		t.Errorf("错误链应包含 ErrDocumentUnreadable: %v", err)
	}
	t.Log("✓ 无法读取的文档被拒绝")
}

// TestRunSinglePage 单页文档完整跑通流水线
func TestRunSinglePage(t *testing.T) {
	provider := &capturingProvider{}
	orch := newTestOrchestrator(provider)

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}

	var lastPercent float64
	result, err := orch.Run(samplePDF(t, "Hello World"), opts, func(page, total int, percent float64) {
		if page != 1 || total != 1 {
			t.Errorf("进度页码错误: %d/%d", page, total)
		}
		lastPercent = percent
	})
	if err != nil {
		t.Fatalf("流水线失败: %v", err)
	}

	if result.TotalPages != 1 {
		t.Errorf("总页数应为 1，得到 %d", result.TotalPages)
	}
	if lastPercent != 100 {
		t.Errorf("最终进度应为 100，得到 %.1f", lastPercent)
	}
	if len(result.Output) == 0 || !bytes.HasPrefix(result.Output, []byte("%PDF")) {
		t.Fatal("输出不是有效的 PDF")
	}

	// 源文本应到达翻译后端
	found := false
	for _, text := range provider.texts {
		if strings.Contains(text, "Hello") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("提取的文本未到达后端: %v", provider.texts)
	}
	t.Logf("✓ 单页流水线完成，输出 %d 字节，后端收到 %d 段文本", len(result.Output), len(provider.texts))
}

// TestRunIdenticalLanguagePair 相同语言对任务完成且零后端调用
func TestRunIdenticalLanguagePair(t *testing.T) {
	provider := &capturingProvider{}
	orch := newTestOrchestrator(provider)

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangEN, TranslateText: true}
	result, err := orch.Run(samplePDF(t, "Same language"), opts, nil)
	if err != nil {
		t.Fatalf("相同语言对应正常完成: %v", err)
	}
	if len(provider.texts) != 0 {
		t.Errorf("不应产生任何后端调用，实际 %d 次", len(provider.texts))
	}
	if len(result.Output) == 0 {
		t.Error("应产出文档")
	}
	t.Log("✓ 相同语言对零调用直通")
}

// TestRunDegradedUnitsCounted 降级单元计入统计但任务仍完成
func TestRunDegradedUnitsCounted(t *testing.T) {
	orch := newTestOrchestrator(&alwaysFailProvider{})

	opts := TaskOptions{SourceLang: LangEN, TargetLang: LangZH, TranslateText: true}
	result, err := orch.Run(samplePDF(t, "Doomed text"), opts, nil)
	if err != nil {
		t.Fatalf("全员降级的任务仍应完成: %v", err)
	}
	if result.DegradedUnits == 0 {
		t.Error("降级单元数应大于 0")
	}
	if len(result.Output) == 0 {
		t.Error("应产出保留原文的文档")
	}
	t.Logf("✓ 任务完成，%d 个单元降级为原文", result.DegradedUnits)
}

// alwaysFailProvider 永远失败的后端
type alwaysFailProvider struct{}

func (p *alwaysFailProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	return "", errors.New("后端永久故障")
}

func (p *alwaysFailProvider) GetName() string { return "always-fail" }
