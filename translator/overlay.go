package translator

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
)

// ImageTranslator 图片文字替换器
// 流程：OCR 检测文字区域 → 逐区域翻译 → 取背景色遮盖原文 → 叠加译文
type ImageTranslator struct {
	OCR    *OCRAdapter
	Client *TranslatorClient
	font   *truetype.Font
}

// NewImageTranslator 创建图片文字替换器
// font 为 nil 时无法叠字，检测到文字的图片将原样保留
func NewImageTranslator(ocr *OCRAdapter, client *TranslatorClient, font *truetype.Font) *ImageTranslator {
	return &ImageTranslator{
		OCR:    ocr,
		Client: client,
		font:   font,
	}
}

// ProcessImage 处理一张图片，返回（处理后的 PNG 字节，是否含文字）
// OCR 没找到文字不是错误，原图原样返回
func (t *ImageTranslator) ProcessImage(data []byte, source, target Language, userPrompt string) ([]byte, bool, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false, fmt.Errorf("解码图片失败: %w", err)
	}

	regions, err := t.OCR.Detect(data, source)
	if err != nil {
		return data, false, fmt.Errorf("OCR 检测失败: %w", err)
	}
	if len(regions) == 0 {
		return data, false, nil
	}

	if t.font == nil {
		// 没有字体无法绘制译文，保留原图避免只遮不写
		return data, false, fmt.Errorf("缺少叠字字体")
	}

	// 复制为可写画布
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	// 先收集可替换区域，整批翻译后再逐个叠字
	eligible := make([]int, 0, len(regions))
	texts := make([]string, 0, len(regions))
	for i, region := range regions {
		if region.LowConfidence || !region.Box.Valid() {
			continue
		}
		eligible = append(eligible, i)
		texts = append(texts, region.Text)
	}

	translated, statuses := t.Client.TranslateBatch(texts, source, target, userPrompt)

	replaced := 0
	for j, idx := range eligible {
		if statuses[j] == StatusDegraded {
			// 译文拿不到就不动原文，遮盖只会造成信息丢失
			continue
		}
		t.maskRegion(canvas, regions[idx].Box)
		t.drawText(canvas, regions[idx].Box, translated[j])
		replaced++
	}

	if replaced == 0 {
		return data, false, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return data, false, fmt.Errorf("编码图片失败: %w", err)
	}
	return buf.Bytes(), true, nil
}

// maskRegion 用区域四周采样出的背景色填充区域，盖住原文字
func (t *ImageTranslator) maskRegion(canvas *image.RGBA, box BoundingBox) {
	rect := boxToRect(canvas.Bounds(), box)
	fill := sampleBackground(canvas, rect)
	draw.Draw(canvas, rect, image.NewUniform(fill), image.Point{}, draw.Src)
}

// sampleBackground 对区域外一圈像素取平均色，取不到时退回白色
func sampleBackground(img *image.RGBA, rect image.Rectangle) color.RGBA {
	ring := rect.Inset(-2)
	bounds := img.Bounds()

	var rSum, gSum, bSum, count uint64
	for y := ring.Min.Y; y < ring.Max.Y; y++ {
		for x := ring.Min.X; x < ring.Max.X; x++ {
			p := image.Pt(x, y)
			if p.In(rect) || !p.In(bounds) {
				continue
			}
			c := img.RGBAAt(x, y)
			rSum += uint64(c.R)
			gSum += uint64(c.G)
			bSum += uint64(c.B)
			count++
		}
	}

	if count == 0 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.RGBA{
		R: uint8(rSum / count),
		G: uint8(gSum / count),
		B: uint8(bSum / count),
		A: 255,
	}
}

// drawText 在区域内绘制译文，字号按区域高度匹配
func (t *ImageTranslator) drawText(canvas *image.RGBA, box BoundingBox, text string) {
	rect := boxToRect(canvas.Bounds(), box)
	size := float64(rect.Dy()) * 0.8
	if size < 8 {
		size = 8
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(t.font)
	c.SetFontSize(size)
	c.SetClip(rect)
	c.SetDst(canvas)
	c.SetSrc(image.NewUniform(color.RGBA{A: 255}))

	// 基线放在区域底部略上，近似对齐原文字
	pt := freetype.Pt(rect.Min.X, rect.Min.Y+int(size))
	if _, err := c.DrawString(text, pt); err != nil {
		// 绘制失败只影响这一个区域，遮盖已经完成，保持静默降级
		return
	}
}

// boxToRect 把浮点包围盒换算为画布内的整数矩形
func boxToRect(bounds image.Rectangle, box BoundingBox) image.Rectangle {
	rect := image.Rect(
		int(box.X), int(box.Y),
		int(box.X+box.Width), int(box.Y+box.Height),
	)
	return rect.Intersect(bounds)
}
