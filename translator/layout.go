package translator

import (
	"fmt"
	"strings"
)

// FitMethod 适配方式
type FitMethod string

const (
	FitKeep   FitMethod = "keep"   // 原字号单行可容纳
	FitShrink FitMethod = "shrink" // 缩小字号后单行容纳
	FitWrap   FitMethod = "wrap"   // 折行容纳
	FitClip   FitMethod = "clip"   // 折行仍溢出，截断并加省略标记
)

// FitPlan 译文在原包围盒中的排版方案
type FitPlan struct {
	Method      FitMethod
	FontSize    float64
	Lines       []string
	LineSpacing float64
	Truncated   bool
}

// LayoutFitter 排版适配器
// 决定译文的字号、折行与截断，保证绘制不越出原包围盒
type LayoutFitter struct {
	Metrics     *FontMetrics
	MinFontSize float64
	MaxFontSize float64
	ShrinkSteps int
	ShrinkRatio float64
	// 语言 -> 基础行距系数，CJK 文字行距略大
	lineSpacing map[Language]float64
}

// NewLayoutFitter 创建排版适配器
func NewLayoutFitter(metrics *FontMetrics) *LayoutFitter {
	return &LayoutFitter{
		Metrics:     metrics,
		MinFontSize: 6,
		MaxFontSize: 24,
		ShrinkSteps: 4,
		ShrinkRatio: 0.9,
		lineSpacing: map[Language]float64{
			LangZH: 1.4,
			LangJA: 1.4,
			LangEN: 1.2,
		},
	}
}

// baseLineSpacing 取目标语言的基础行距系数
func (f *LayoutFitter) baseLineSpacing(target Language) float64 {
	if s, ok := f.lineSpacing[target]; ok {
		return s
	}
	return 1.3
}

// truncationMarker 截断标记
const truncationMarker = "…"

// Fit 为译文计算排版方案
// 顺序：原字号单行 → 有限步缩小字号 → 折行 → 截断加省略号，字号永不低于可读下限
func (f *LayoutFitter) Fit(box BoundingBox, text string, style StyleHints, target Language) (*FitPlan, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("无效的包围盒: %.2fx%.2f", box.Width, box.Height)
	}

	size := style.FontSize
	if size <= 0 {
		size = 12
	}
	// CJK 译文通常比拉丁原文占宽，先按 0.85 缩放并限制在可读区间
	if target.IsCJK() {
		size = clamp(size*0.85, f.MinFontSize, f.MaxFontSize)
	}
	spacing := f.baseLineSpacing(target)

	// 1) 原字号单行即可容纳
	if f.Metrics.TextWidth(text, size) <= box.Width {
		return &FitPlan{
			Method:      FitKeep,
			FontSize:    size,
			Lines:       []string{text},
			LineSpacing: spacing,
		}, nil
	}

	// 2) 有限步缩小字号，寻找单行容纳
	shrunk := size
	for step := 0; step < f.ShrinkSteps; step++ {
		next := shrunk * f.ShrinkRatio
		if next < f.MinFontSize {
			break
		}
		shrunk = next
		if f.Metrics.TextWidth(text, shrunk) <= box.Width {
			return &FitPlan{
				Method:      FitShrink,
				FontSize:    shrunk,
				Lines:       []string{text},
				LineSpacing: spacing,
			}, nil
		}
	}

	// 3) 在缩小后的字号上折行
	lines := f.Metrics.WrapText(text, shrunk, box.Width)
	if float64(len(lines))*shrunk*spacing <= box.Height {
		return &FitPlan{
			Method:      FitWrap,
			FontSize:    shrunk,
			Lines:       lines,
			LineSpacing: spacing,
		}, nil
	}

	// 4) 行数超出盒高：截断到可容纳的行数，末行加省略标记
	// 宁可截断也不改变页面尺寸
	maxLines := int(box.Height / (shrunk * spacing))
	if maxLines < 1 {
		maxLines = 1
	}
	if maxLines > len(lines) {
		maxLines = len(lines)
	}

	clipped := make([]string, maxLines)
	copy(clipped, lines[:maxLines])
	clipped[maxLines-1] = f.truncateLine(clipped[maxLines-1], shrunk, box.Width)

	return &FitPlan{
		Method:      FitClip,
		FontSize:    shrunk,
		Lines:       clipped,
		LineSpacing: spacing,
		Truncated:   true,
	}, nil
}

// truncateLine 裁掉行尾字符为省略标记腾出宽度
func (f *LayoutFitter) truncateLine(line string, size, maxWidth float64) string {
	markerWidth := f.Metrics.TextWidth(truncationMarker, size)

	runes := []rune(line)
	for len(runes) > 0 && f.Metrics.TextWidth(string(runes), size)+markerWidth > maxWidth {
		runes = runes[:len(runes)-1]
	}

	return strings.TrimRight(string(runes), " ") + truncationMarker
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
