package translator

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // 注册 JPEG 解码器，DCT 编码的图片流直接走标准解码
	"image/png"
	"log"

	dslipakpdf "github.com/dslipak/pdf"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// TextBlock 源页面中的一个文本块
type TextBlock struct {
	Text     string
	Box      BoundingBox
	FontName string
	FontSize float64
}

// ImageRegion 源页面中的一个图片区域
// Box 无效表示内容流中未定位到该图片的绘制位置
type ImageRegion struct {
	Name   string
	Box    BoundingBox
	Data   []byte // PNG 编码
	Width  int
	Height int
}

// PageContent 一页提取出的全部内容
type PageContent struct {
	Number     int
	Width      float64
	Height     float64
	TextBlocks []TextBlock
	Images     []ImageRegion
}

// SourceDocument 打开的源文档
type SourceDocument struct {
	PageCount int
	Pages     []PageContent
}

// OpenPDFDocument 打开 PDF 并提取每页的文本块与图片区域
// 容器无法解析时返回 ErrDocumentUnreadable，任务不会启动
func OpenPDFDocument(data []byte) (*SourceDocument, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnreadable, err)
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("%w: 文档没有页面", ErrDocumentUnreadable)
	}

	doc := &SourceDocument{
		PageCount: ctx.PageCount,
		Pages:     make([]PageContent, 0, ctx.PageCount),
	}

	for pageNum := 1; pageNum <= ctx.PageCount; pageNum++ {
		page := PageContent{Number: pageNum - 1, Width: 595, Height: 842}

		pageDict, _, inhPAttrs, err := ctx.PageDict(pageNum, false)
		if err != nil {
			log.Printf("警告：获取第 %d 页字典失败: %v", pageNum, err)
			doc.Pages = append(doc.Pages, page)
			continue
		}
		if inhPAttrs != nil && inhPAttrs.MediaBox != nil {
			page.Width = inhPAttrs.MediaBox.Width()
			page.Height = inhPAttrs.MediaBox.Height()
		}

		page.TextBlocks = extractTextBlocks(data, pageNum, page.Width, page.Height)
		page.Images = extractImages(ctx, pageDict, pageNum, page.Height)

		doc.Pages = append(doc.Pages, page)
	}

	return doc, nil
}

// extractTextBlocks 提取一页的定位文本块
// 先用 ledongthuc/pdf 取带坐标的文本，失败时退回 dslipak/pdf 的纯文本
func extractTextBlocks(data []byte, pageNum int, pageW, pageH float64) []TextBlock {
	blocks, err := readPositionedText(data, pageNum, pageH)
	if err == nil {
		return blocks
	}
	log.Printf("警告：第 %d 页定位文本提取失败，尝试纯文本回退: %v", pageNum, err)

	text, err := readPlainText(data, pageNum)
	if err != nil || text == "" {
		if err != nil {
			log.Printf("警告：第 %d 页纯文本回退也失败: %v", pageNum, err)
		}
		return nil
	}

	// 回退模式没有坐标信息，整页文本放进一个页边距内的大块
	return []TextBlock{{
		Text:     text,
		Box:      BoundingBox{X: pageW * 0.1, Y: pageH * 0.1, Width: pageW * 0.8, Height: pageH * 0.8},
		FontName: "Helvetica",
		FontSize: 12,
	}}
}

// readPositionedText 用 ledongthuc/pdf 读取带坐标的文本并按行聚合
// 底层库对异常文件会 panic，这里统一转为错误
func readPositionedText(data []byte, pageNum int, pageH float64) (blocks []TextBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析 panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if pageNum > reader.NumPage() {
		return nil, fmt.Errorf("页码越界: %d/%d", pageNum, reader.NumPage())
	}

	p := reader.Page(pageNum)
	if p.V.IsNull() {
		return nil, fmt.Errorf("空页面")
	}

	texts := p.Content().Text
	if len(texts) == 0 {
		return nil, nil
	}

	return groupTextsIntoLines(texts, pageH), nil
}

// groupTextsIntoLines 把散落的文本片段按基线聚成行块
// 片段的 Y 是 PDF 底左原点的基线位置，聚合后换算为左上角原点的包围盒
func groupTextsIntoLines(texts []pdf.Text, pageH float64) []TextBlock {
	type lineAccum struct {
		baseline float64
		fontSize float64
		fontName string
		minX     float64
		maxX     float64
		buf      bytes.Buffer
	}

	var lines []*lineAccum
	var cur *lineAccum

	for _, t := range texts {
		if t.S == "" {
			continue
		}

		fontSize := t.FontSize
		if fontSize <= 0 {
			fontSize = 12
		}
		// 基线偏差在半个字号以内视为同一行
		if cur == nil || absFloat(t.Y-cur.baseline) > fontSize*0.5 {
			cur = &lineAccum{
				baseline: t.Y,
				fontSize: fontSize,
				fontName: t.Font,
				minX:     t.X,
				maxX:     t.X + t.W,
			}
			lines = append(lines, cur)
		} else {
			if t.X < cur.minX {
				cur.minX = t.X
			}
			if t.X+t.W > cur.maxX {
				cur.maxX = t.X + t.W
			}
			if fontSize > cur.fontSize {
				cur.fontSize = fontSize
			}
		}
		cur.buf.WriteString(t.S)
	}

	blocks := make([]TextBlock, 0, len(lines))
	for _, l := range lines {
		text := l.buf.String()
		if len(bytes.TrimSpace([]byte(text))) == 0 {
			continue
		}
		blocks = append(blocks, TextBlock{
			Text:     text,
			FontName: l.fontName,
			FontSize: l.fontSize,
			Box: BoundingBox{
				X:      l.minX,
				Y:      pageH - l.baseline - l.fontSize, // 基线上方约一个字号处为块顶
				Width:  l.maxX - l.minX,
				Height: l.fontSize * 1.2,
			},
		})
	}
	return blocks
}

// readPlainText 用 dslipak/pdf 读取一页纯文本（无坐标的兜底方案）
func readPlainText(data []byte, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析 panic: %v", r)
		}
	}()

	reader, err := dslipakpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	if pageNum > reader.NumPage() {
		return "", fmt.Errorf("页码越界")
	}

	return reader.Page(pageNum).GetPlainText(nil)
}

// extractImages 提取页面 XObject 图片及其在页面上的位置
func extractImages(ctx *model.Context, pageDict types.Dict, pageNum int, pageH float64) []ImageRegion {
	xobjects := imageXObjects(ctx, pageDict)
	if len(xobjects) == 0 {
		return nil
	}

	// 内容流里 Do 操作符给出每个 XObject 的绘制位置
	placements := map[string]BoundingBox{}
	if content, err := pageContentStream(ctx, pageDict); err == nil {
		for _, p := range scanImagePlacements(content, pageH) {
			placements[p.name] = p.box
		}
	} else {
		log.Printf("警告：读取第 %d 页内容流失败: %v", pageNum, err)
	}

	var regions []ImageRegion
	for name, sd := range xobjects {
		img, err := decodeImageXObject(sd)
		if err != nil {
			log.Printf("警告：解码第 %d 页图片 %s 失败: %v", pageNum, name, err)
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			log.Printf("警告：编码第 %d 页图片 %s 失败: %v", pageNum, name, err)
			continue
		}

		bounds := img.Bounds()
		regions = append(regions, ImageRegion{
			Name:   name,
			Box:    placements[name], // 未定位时为零值，后续按无效包围盒跳过
			Data:   buf.Bytes(),
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		})
	}
	return regions
}

// imageXObjects 收集页面资源里的图片 XObject
func imageXObjects(ctx *model.Context, pageDict types.Dict) map[string]*types.StreamDict {
	images := make(map[string]*types.StreamDict)

	resourcesObj, found := pageDict.Find("Resources")
	if !found {
		return images
	}
	resources, err := ctx.DereferenceDict(resourcesObj)
	if err != nil || resources == nil {
		return images
	}

	xobjectObj, found := resources.Find("XObject")
	if !found {
		return images
	}
	xobjects, err := ctx.DereferenceDict(xobjectObj)
	if err != nil || xobjects == nil {
		return images
	}

	for name, value := range xobjects {
		sd, _, err := ctx.DereferenceStreamDict(value)
		if err != nil || sd == nil {
			continue
		}
		if subtype, ok := sd.Dict.Find("Subtype"); ok {
			if n, ok := subtype.(types.Name); ok && n == "Image" {
				images[name] = sd
			}
		}
	}
	return images
}

// pageContentStream 拼接页面的全部内容流字节
func pageContentStream(ctx *model.Context, pageDict types.Dict) ([]byte, error) {
	contentsObj, found := pageDict.Find("Contents")
	if !found {
		return nil, fmt.Errorf("页面没有内容流")
	}

	obj, err := ctx.Dereference(contentsObj)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	appendStream := func(o types.Object) {
		sd, _, err := ctx.DereferenceStreamDict(o)
		if err != nil || sd == nil {
			return
		}
		if err := sd.Decode(); err != nil {
			return
		}
		buf.Write(sd.Content)
		buf.WriteByte('\n')
	}

	switch v := obj.(type) {
	case types.Array:
		for _, el := range v {
			appendStream(el)
		}
	default:
		appendStream(contentsObj)
	}

	return buf.Bytes(), nil
}

// decodeImageXObject 把图片流解码为 image.Image
// 优先走标准解码器（JPEG/PNG 流），失败再按原始采样数据重建
func decodeImageXObject(sd *types.StreamDict) (image.Image, error) {
	raw := sd.Raw
	if err := sd.Decode(); err == nil && len(sd.Content) > 0 {
		raw = sd.Content
	}

	if img, _, err := image.Decode(bytes.NewReader(raw)); err == nil {
		return img, nil
	}

	width, _ := intValue(sd.Dict, "Width")
	height, _ := intValue(sd.Dict, "Height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("无效的图片尺寸: %dx%d", width, height)
	}

	return rawSamplesToImage(raw, width, height, colorSpaceName(sd.Dict)), nil
}

func intValue(dict types.Dict, key string) (int, bool) {
	obj, found := dict.Find(key)
	if !found {
		return 0, false
	}
	switch v := obj.(type) {
	case types.Integer:
		return int(v), true
	case types.Float:
		return int(v), true
	}
	return 0, false
}

func colorSpaceName(dict types.Dict) string {
	obj, found := dict.Find("ColorSpace")
	if !found {
		return "DeviceRGB"
	}
	if n, ok := obj.(types.Name); ok {
		return string(n)
	}
	return "DeviceRGB"
}

// rawSamplesToImage 按颜色空间把原始采样数据重建为 RGBA 图片
func rawSamplesToImage(data []byte, width, height int, colorSpace string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	bytesPerPixel := 3
	switch colorSpace {
	case "DeviceGray":
		bytesPerPixel = 1
	case "DeviceCMYK":
		bytesPerPixel = 4
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := (y*width + x) * bytesPerPixel
			if offset+bytesPerPixel > len(data) {
				break
			}

			var r, g, b uint8
			switch colorSpace {
			case "DeviceGray":
				r, g, b = data[offset], data[offset], data[offset]
			case "DeviceCMYK":
				c := float64(data[offset]) / 255.0
				m := float64(data[offset+1]) / 255.0
				yy := float64(data[offset+2]) / 255.0
				k := float64(data[offset+3]) / 255.0
				r = uint8((1 - c) * (1 - k) * 255)
				g = uint8((1 - m) * (1 - k) * 255)
				b = uint8((1 - yy) * (1 - k) * 255)
			default:
				r, g, b = data[offset], data[offset+1], data[offset+2]
			}

			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
