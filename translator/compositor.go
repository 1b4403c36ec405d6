package translator

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/jung-kurt/gofpdf"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Compositor 页面合成器
// 把翻译结果按原包围盒重绘到新的 PDF 页面，并能渲染页面位图预览。
// 相同输入产出相同结果：预览与下载必须一致
type Compositor struct {
	fontPath string
	fontName string
	ttf      *truetype.Font
}

// NewCompositor 创建页面合成器
func NewCompositor(fontPath string) *Compositor {
	c := &Compositor{
		fontPath: fontPath,
		fontName: "Helvetica",
	}

	if fontPath == "" {
		return c
	}

	// gofpdf 与 freetype 都只认单字体 TTF，字体集合文件跳过注册
	if strings.EqualFold(filepath.Ext(fontPath), ".ttc") {
		log.Printf("警告：不支持字体集合文件 %s，输出退化到内置字体", fontPath)
		return c
	}

	c.fontName = strings.TrimSuffix(filepath.Base(fontPath), filepath.Ext(fontPath))

	if data, err := os.ReadFile(fontPath); err == nil {
		if f, err := truetype.Parse(data); err == nil {
			c.ttf = f
		} else {
			log.Printf("警告：预览字体解析失败: %v", err)
		}
	}

	return c
}

// NewDocument 创建输出 PDF 文档
func (c *Compositor) NewDocument() *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: 595, Ht: 842},
	})

	if c.fontPath != "" && c.fontName != "Helvetica" {
		pdf.AddUTF8Font(c.fontName, "", c.fontPath)
	}
	pdf.SetFont(c.fontName, "", 12)
	pdf.SetAutoPageBreak(false, 0)

	return pdf
}

// RenderPage 把一页的结果绘制到输出文档
// 严格按输入顺序（自底向上）绘制，后画的单元只在包围盒确实重叠时覆盖前者
// gofpdf 的错误是粘性的，单元出错必须就地清除，
// 否则一个坏单元会把同页剩余单元、后续所有页面连同最终输出一起拖垮
func (c *Compositor) RenderPage(pdf *gofpdf.Fpdf, job *PageJob) error {
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: job.Width, Ht: job.Height})
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("绘制第 %d 页失败: %w", job.Number+1, err)
	}

	var firstErr error
	for i, res := range job.Results {
		if res.Unit == nil {
			continue
		}

		switch res.Unit.Kind {
		case UnitImageRegion:
			c.drawImageUnit(pdf, job.Number, i, res)
		case UnitTextBlock:
			c.drawTextUnit(pdf, res)
		}

		if pdf.Err() {
			if firstErr == nil {
				firstErr = pdf.Error()
			}
			pdf.ClearError()
		}
	}

	if firstErr != nil {
		return fmt.Errorf("绘制第 %d 页失败: %w", job.Number+1, firstErr)
	}
	return nil
}

// drawImageUnit 在原位置绘制（可能已叠字的）图片
func (c *Compositor) drawImageUnit(pdf *gofpdf.Fpdf, pageNum, unitIdx int, res TranslatedUnit) {
	box := res.Unit.Box
	if !box.Valid() {
		// 内容流中未定位到的图片无从摆放，跳过
		return
	}

	data := res.ImageData
	if len(data) == 0 {
		data = res.Unit.ImageData
	}
	if len(data) == 0 {
		return
	}

	name := fmt.Sprintf("img_p%d_u%d", pageNum, unitIdx)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name, box.X, box.Y, box.Width, box.Height, false, opts, 0, "")
}

// drawTextUnit 按排版方案绘制文本行
func (c *Compositor) drawTextUnit(pdf *gofpdf.Fpdf, res TranslatedUnit) {
	fit := res.Fit
	if fit == nil || len(fit.Lines) == 0 {
		return
	}
	box := res.Unit.Box

	style := ""
	if res.Unit.Style.Bold && c.fontName == "Helvetica" {
		style = "B"
	}
	pdf.SetFont(c.fontName, style, fit.FontSize)
	pdf.SetTextColor(0, 0, 0)

	for i, line := range fit.Lines {
		// Text 的 y 是基线位置，行顶加一个字号即基线
		y := box.Y + fit.FontSize*fit.LineSpacing*float64(i) + fit.FontSize
		pdf.Text(box.X, y, line)
	}
}

// Output 输出 PDF 字节
func (c *Compositor) Output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("输出 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPreview 把一页渲染成 PNG 位图预览
func (c *Compositor) RenderPreview(job *PageJob, dpi int) ([]byte, error) {
	if dpi <= 0 {
		dpi = 96
	}
	scale := float64(dpi) / 72.0

	w := int(job.Width * scale)
	h := int(job.Height * scale)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("无效的页面尺寸: %.2fx%.2f", job.Width, job.Height)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	for _, res := range job.Results {
		if res.Unit == nil {
			continue
		}
		switch res.Unit.Kind {
		case UnitImageRegion:
			c.previewImage(canvas, res, scale)
		case UnitTextBlock:
			c.previewText(canvas, res, scale)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("编码预览失败: %w", err)
	}
	return buf.Bytes(), nil
}

// previewImage 把图片单元缩放绘制到预览画布
func (c *Compositor) previewImage(canvas *image.RGBA, res TranslatedUnit, scale float64) {
	box := res.Unit.Box
	if !box.Valid() {
		return
	}

	data := res.ImageData
	if len(data) == 0 {
		data = res.Unit.ImageData
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}

	dst := image.Rect(
		int(box.X*scale), int(box.Y*scale),
		int((box.X+box.Width)*scale), int((box.Y+box.Height)*scale),
	)
	xdraw.ApproxBiLinear.Scale(canvas, dst, src, src.Bounds(), xdraw.Over, nil)
}

// previewText 把文本单元的排版方案绘制到预览画布
// 有 TTF 用 freetype 栅格化，否则退化到内置点阵字体
func (c *Compositor) previewText(canvas *image.RGBA, res TranslatedUnit, scale float64) {
	fit := res.Fit
	if fit == nil || len(fit.Lines) == 0 {
		return
	}
	box := res.Unit.Box

	for i, line := range fit.Lines {
		x := box.X * scale
		y := (box.Y + fit.FontSize*fit.LineSpacing*float64(i) + fit.FontSize) * scale

		if c.ttf != nil {
			ft := freetype.NewContext()
			ft.SetDPI(72)
			ft.SetFont(c.ttf)
			ft.SetFontSize(fit.FontSize * scale)
			ft.SetClip(canvas.Bounds())
			ft.SetDst(canvas)
			ft.SetSrc(image.NewUniform(color.Black))
			ft.DrawString(line, freetype.Pt(int(x), int(y)))
		} else {
			d := font.Drawer{
				Dst:  canvas,
				Src:  image.NewUniform(color.Black),
				Face: basicfont.Face7x13,
				Dot:  fixed.P(int(x), int(y)),
			}
			d.DrawString(line)
		}
	}
}
