package translator

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/math/fixed"
)

// FontMetrics 字体度量计算器
// 优先使用真实 TTF 字体计算文本宽度，字体缺失时退回到按字符类别的估算
type FontMetrics struct {
	font       *truetype.Font
	mutex      sync.RWMutex
	widthCache map[string]float64
}

// NewFontMetrics 创建字体度量计算器
// fontPath 为空或加载失败时使用估算模式
func NewFontMetrics(fontPath string) *FontMetrics {
	fm := &FontMetrics{
		widthCache: make(map[string]float64),
	}

	if fontPath == "" {
		return fm
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		log.Printf("警告：读取字体文件失败，改用估算宽度: %v", err)
		return fm
	}

	font, err := truetype.Parse(data)
	if err != nil {
		log.Printf("警告：解析字体文件失败，改用估算宽度: %v", err)
		return fm
	}

	fm.font = font
	log.Printf("字体度量已加载: %s", fontPath)
	return fm
}

// Font 返回加载的 TTF 字体，估算模式下为 nil
func (fm *FontMetrics) Font() *truetype.Font {
	return fm.font
}

// TextWidth 计算文本在给定字号下的宽度
func (fm *FontMetrics) TextWidth(text string, size float64) float64 {
	if text == "" {
		return 0
	}

	cacheKey := fmt.Sprintf("%s|%.2f", text, size)
	fm.mutex.RLock()
	if w, ok := fm.widthCache[cacheKey]; ok {
		fm.mutex.RUnlock()
		return w
	}
	fm.mutex.RUnlock()

	var width float64
	if fm.font != nil {
		width = fm.measureWithFont(text, size)
	} else {
		width = fm.estimateWidth(text, size)
	}

	fm.mutex.Lock()
	fm.widthCache[cacheKey] = width
	fm.mutex.Unlock()

	return width
}

// measureWithFont 用 TTF 字形的步进宽度求和
func (fm *FontMetrics) measureWithFont(text string, size float64) float64 {
	scale := fixed.Int26_6(size * 64)
	total := 0.0

	for _, r := range text {
		idx := fm.font.Index(r)
		if idx == 0 {
			// 字体不含该字形，退回估算
			total += fm.estimateWidth(string(r), size)
			continue
		}
		hm := fm.font.HMetric(scale, idx)
		total += float64(hm.AdvanceWidth) / 64.0
	}

	return total
}

// estimateWidth 按字符类别估算宽度：CJK 全宽，空格 1/4，其余按拉丁平均宽度
func (fm *FontMetrics) estimateWidth(text string, size float64) float64 {
	width := 0.0
	for _, r := range text {
		switch {
		case r == ' ':
			width += size * 0.25
		case isCJKRune(r):
			width += size
		default:
			width += size * 0.55
		}
	}
	return width
}

// WrapText 把文本按最大宽度折行
// 拉丁文在空格处断行，CJK 允许任意字符间断行；单词超宽时按字符硬切
func (fm *FontMetrics) WrapText(text string, size, maxWidth float64) []string {
	if text == "" {
		return nil
	}
	if maxWidth <= 0 || fm.TextWidth(text, size) <= maxWidth {
		return []string{text}
	}

	var lines []string
	var line strings.Builder
	lineWidth := 0.0
	lastSpace := -1 // line 中最后一个空格的字节下标

	flush := func() {
		if line.Len() > 0 {
			lines = append(lines, strings.TrimRight(line.String(), " "))
			line.Reset()
			lineWidth = 0
			lastSpace = -1
		}
	}

	for _, r := range text {
		rw := fm.TextWidth(string(r), size)

		if lineWidth+rw > maxWidth && line.Len() > 0 {
			if isCJKRune(r) || r == ' ' || lastSpace < 0 {
				// CJK 或无可用断点：当前位置直接断行
				flush()
				if r == ' ' {
					continue
				}
			} else {
				// 拉丁文：回退到最后一个空格处断行
				s := line.String()
				lines = append(lines, strings.TrimRight(s[:lastSpace], " "))
				rest := strings.TrimLeft(s[lastSpace:], " ")
				line.Reset()
				line.WriteString(rest)
				lineWidth = fm.TextWidth(rest, size)
				lastSpace = -1
			}
		}

		if r == ' ' {
			lastSpace = line.Len()
		}
		line.WriteRune(r)
		lineWidth += rw
	}
	flush()

	return lines
}

// isCJKRune 是否为中日韩字符
func isCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		(r >= 0x3000 && r <= 0x303f) // CJK 标点
}
