package translator

import (
	"fmt"
	"log"
	"sync"
)

// Reconstructor 布局重建器
// 对一页：拆分可翻译单元，并发请求翻译/OCR，计算排版方案，
// 产出与输入严格一一对应的结果序列供合成器绘制
type Reconstructor struct {
	Client *TranslatorClient
	Images *ImageTranslator // 为 nil 时图片单元全部原样保留
	Fitter *LayoutFitter
	// Concurrency 页内单元翻译的并发上限
	Concurrency int
}

// NewReconstructor 创建布局重建器
func NewReconstructor(client *TranslatorClient, images *ImageTranslator, fitter *LayoutFitter) *Reconstructor {
	return &Reconstructor{
		Client:      client,
		Images:      images,
		Fitter:      fitter,
		Concurrency: 4,
	}
}

// ExtractUnits 把一页内容拆分为有序的可翻译单元
// 顺序固定：先文本块后图片区域，下游按下标对应结果
func (r *Reconstructor) ExtractUnits(page *PageContent, opts TaskOptions) []*TranslatableUnit {
	units := make([]*TranslatableUnit, 0, len(page.TextBlocks)+len(page.Images))

	for _, block := range page.TextBlocks {
		units = append(units, &TranslatableUnit{
			Kind:       UnitTextBlock,
			Box:        block.Box,
			SourceText: block.Text,
			SourceLang: opts.SourceLang,
			TargetLang: opts.TargetLang,
			Style: StyleHints{
				FontName: block.FontName,
				FontSize: block.FontSize,
			},
		})
	}

	for _, img := range page.Images {
		units = append(units, &TranslatableUnit{
			Kind:       UnitImageRegion,
			Box:        img.Box,
			ImageData:  img.Data,
			SourceLang: opts.SourceLang,
			TargetLang: opts.TargetLang,
		})
	}

	return units
}

// ReconstructPage 处理一页的全部单元
// 单元之间相互独立，按并发上限扇出，结果按下标回填，顺序与输入一致。
// 任何单元的失败都被就地降级，绝不中断整页
func (r *Reconstructor) ReconstructPage(job *PageJob, opts TaskOptions) {
	job.Results = make([]TranslatedUnit, len(job.Units))

	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, unit := range job.Units {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, u *TranslatableUnit) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("警告：第 %d 页单元 %d 处理 panic，降级为原内容: %v", job.Number+1, idx, rec)
					job.Results[idx] = TranslatedUnit{
						Unit:   u,
						Status: StatusDegraded,
						Reason: fmt.Sprintf("panic: %v", rec),
					}
				}
			}()

			job.Results[idx] = r.processUnit(u, opts)
		}(i, unit)
	}
	wg.Wait()
}

// processUnit 处理单个单元
func (r *Reconstructor) processUnit(unit *TranslatableUnit, opts TaskOptions) TranslatedUnit {
	switch unit.Kind {
	case UnitTextBlock:
		return r.processTextUnit(unit, opts)
	case UnitImageRegion:
		return r.processImageUnit(unit, opts)
	}
	return TranslatedUnit{Unit: unit, Status: StatusSkipped, Reason: "未知单元类型"}
}

// processTextUnit 翻译文本块并计算排版方案
func (r *Reconstructor) processTextUnit(unit *TranslatableUnit, opts TaskOptions) TranslatedUnit {
	if !unit.Box.Valid() {
		// 源文件元数据损坏，跳过而不是在适配计算里除零
		return TranslatedUnit{Unit: unit, Status: StatusSkipped, Reason: "无效的包围盒"}
	}
	if !opts.TranslateText {
		fit, _ := r.Fitter.Fit(unit.Box, unit.SourceText, unit.Style, unit.SourceLang)
		return TranslatedUnit{Unit: unit, TranslatedText: unit.SourceText, Fit: fit, Status: StatusSkipped, Reason: "未启用文本翻译"}
	}
	if isBlank(unit.SourceText) {
		return TranslatedUnit{Unit: unit, Status: StatusSkipped, Reason: "空白文本"}
	}

	translated, status := r.Client.TranslateOrOriginal(unit.SourceText, unit.SourceLang, unit.TargetLang, opts.UserPrompt)

	fit, err := r.Fitter.Fit(unit.Box, translated, unit.Style, unit.TargetLang)
	if err != nil {
		return TranslatedUnit{Unit: unit, Status: StatusSkipped, Reason: err.Error()}
	}

	res := TranslatedUnit{
		Unit:           unit,
		TranslatedText: translated,
		Fit:            fit,
		Status:         status,
	}
	if status == StatusDegraded {
		res.Reason = "翻译重试耗尽，保留原文"
	}
	return res
}

// processImageUnit 对图片区域做 OCR 检测与叠字替换
func (r *Reconstructor) processImageUnit(unit *TranslatableUnit, opts TaskOptions) TranslatedUnit {
	if !opts.TranslateImages || r.Images == nil {
		return TranslatedUnit{Unit: unit, ImageData: unit.ImageData, Status: StatusSkipped, Reason: "未启用图片翻译"}
	}
	if len(unit.ImageData) == 0 {
		return TranslatedUnit{Unit: unit, Status: StatusSkipped, Reason: "空图片数据"}
	}

	processed, hadText, err := r.Images.ProcessImage(unit.ImageData, unit.SourceLang, unit.TargetLang, opts.UserPrompt)
	if err != nil {
		// 单元级失败：保留原图继续
		log.Printf("警告：图片处理降级为原图: %v", err)
		return TranslatedUnit{Unit: unit, ImageData: unit.ImageData, Status: StatusDegraded, Reason: err.Error()}
	}
	if !hadText {
		// 纯装饰图片或 OCR 无发现，原样保留
		return TranslatedUnit{Unit: unit, ImageData: unit.ImageData, Status: StatusSkipped, Reason: "图片中无文字"}
	}

	return TranslatedUnit{Unit: unit, ImageData: processed, Status: StatusSuccess}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\r' && r != '\n' {
			return false
		}
	}
	return true
}
