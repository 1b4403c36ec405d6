package translator

import (
	"strings"
	"testing"
)

// TestOpenPDFDocument 解析生成的单页文档
func TestOpenPDFDocument(t *testing.T) {
	data := samplePDF(t, "Hello World")

	doc, err := OpenPDFDocument(data)
	if err != nil {
		t.Fatalf("打开文档失败: %v", err)
	}

	if doc.PageCount != 1 {
		t.Fatalf("页数应为 1，得到 %d", doc.PageCount)
	}

	page := doc.Pages[0]
	if page.Width < 590 || page.Width > 600 {
		t.Errorf("A4 页宽异常: %.2f", page.Width)
	}
	if page.Height < 835 || page.Height > 845 {
		t.Errorf("A4 页高异常: %.2f", page.Height)
	}

	if len(page.TextBlocks) == 0 {
		t.Fatal("未提取到任何文本块")
	}

	found := false
	for _, block := range page.TextBlocks {
		t.Logf("  文本块: %q @ (%.1f, %.1f) %.1fx%.1f",
			block.Text, block.Box.X, block.Box.Y, block.Box.Width, block.Box.Height)
		if strings.Contains(block.Text, "Hello") {
			found = true
			if !block.Box.Valid() {
				t.Error("文本块包围盒无效")
			}
		}
	}
	if !found {
		t.Error("未找到写入的文本")
	}
	t.Logf("✓ 提取到 %d 个文本块", len(page.TextBlocks))
}

// TestOpenPDFDocumentInvalid 非 PDF 数据报 ErrDocumentUnreadable
func TestOpenPDFDocumentInvalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte(""), []byte("plain text"), []byte("%PDF-1.7 truncated")} {
		if _, err := OpenPDFDocument(data); err == nil {
			t.Errorf("%.20q 应报错", data)
		}
	}
	t.Log("✓ 无效输入全部拒绝")
}
