package translator

import (
	"bytes"
	"image/png"
	"testing"
)

func textJob() *PageJob {
	unit := &TranslatableUnit{
		Kind:       UnitTextBlock,
		Box:        BoundingBox{X: 50, Y: 100, Width: 200, Height: 20},
		SourceText: "Hello",
		SourceLang: LangEN,
		TargetLang: LangEN,
		Style:      StyleHints{FontSize: 12},
	}
	return &PageJob{
		Number: 0,
		Width:  595,
		Height: 842,
		Units:  []*TranslatableUnit{unit},
		Results: []TranslatedUnit{{
			Unit:           unit,
			TranslatedText: "Hello",
			Fit: &FitPlan{
				Method:      FitKeep,
				FontSize:    12,
				Lines:       []string{"Hello"},
				LineSpacing: 1.2,
			},
			Status: StatusSuccess,
		}},
	}
}

// TestCompositorRenderPage 文本单元渲染出有效的 PDF
func TestCompositorRenderPage(t *testing.T) {
	comp := NewCompositor("")
	pdf := comp.NewDocument()

	if err := comp.RenderPage(pdf, textJob()); err != nil {
		t.Fatalf("渲染失败: %v", err)
	}

	out, err := comp.Output(pdf)
	if err != nil {
		t.Fatalf("输出失败: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("输出不是有效的 PDF")
	}
	t.Logf("✓ 输出 %d 字节", len(out))
}

// TestCompositorRenderPreview 预览为页面尺寸的 PNG 位图
func TestCompositorRenderPreview(t *testing.T) {
	comp := NewCompositor("")

	data, err := comp.RenderPreview(textJob(), 72)
	if err != nil {
		t.Fatalf("预览失败: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("预览不是有效的 PNG: %v", err)
	}

	// 72dpi 下 1pt = 1px
	bounds := img.Bounds()
	if bounds.Dx() != 595 || bounds.Dy() != 842 {
		t.Errorf("预览尺寸错误: %dx%d", bounds.Dx(), bounds.Dy())
	}
	t.Logf("✓ 预览 %dx%d PNG", bounds.Dx(), bounds.Dy())
}

// TestCompositorBadUnitContained 坏图片单元只拖垮本页，后续页面与最终输出不受影响
func TestCompositorBadUnitContained(t *testing.T) {
	comp := NewCompositor("")
	pdf := comp.NewDocument()

	bad := textJob()
	badImage := &TranslatableUnit{
		Kind:      UnitImageRegion,
		Box:       BoundingBox{X: 10, Y: 10, Width: 100, Height: 50},
		ImageData: []byte("这不是 PNG"),
	}
	bad.Units = append(bad.Units, badImage)
	bad.Results = append(bad.Results, TranslatedUnit{
		Unit:      badImage,
		ImageData: badImage.ImageData,
		Status:    StatusSkipped,
	})

	if err := comp.RenderPage(pdf, bad); err == nil {
		t.Fatal("坏图片单元应当报告渲染错误")
	}

	good := textJob()
	good.Number = 1
	if err := comp.RenderPage(pdf, good); err != nil {
		t.Fatalf("后续页面不应受前页错误影响: %v", err)
	}

	out, err := comp.Output(pdf)
	if err != nil {
		t.Fatalf("最终输出不应受单页错误影响: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("输出不是有效的 PDF")
	}
	t.Log("✓ 单页渲染错误被就地隔离")
}

// TestCompositorMultiPage 每页使用各自的尺寸
func TestCompositorMultiPage(t *testing.T) {
	comp := NewCompositor("")
	pdf := comp.NewDocument()

	first := textJob()
	second := textJob()
	second.Number = 1
	second.Width = 842
	second.Height = 595

	if err := comp.RenderPage(pdf, first); err != nil {
		t.Fatalf("第 1 页渲染失败: %v", err)
	}
	if err := comp.RenderPage(pdf, second); err != nil {
		t.Fatalf("第 2 页渲染失败: %v", err)
	}

	out, err := comp.Output(pdf)
	if err != nil {
		t.Fatalf("输出失败: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("输出为空")
	}
	t.Log("✓ 多页混合尺寸渲染成功")
}
