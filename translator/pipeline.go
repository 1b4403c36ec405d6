package translator

import (
	"fmt"
	"log"
)

// 翻译引擎
const (
	EngineText   = "text"   // 文本抽取 + 逐块翻译 + 排版重建
	EngineVision = "vision" // 整页位图交给视觉模型
)

// ProgressFunc 每处理完一页回调一次
type ProgressFunc func(page, total int, percent float64)

// RunResult 一次流水线执行的产出
type RunResult struct {
	Output        []byte // 译文 PDF
	TotalPages    int
	FailedPages   int
	DegradedUnits int
	SkippedUnits  int
}

// Orchestrator 翻译流水线编排器
// 串起文档解析、单元翻译、排版重建与页面合成，
// 页与页之间串行，单页内部由 Reconstructor 并发处理
type Orchestrator struct {
	Reconstructor *Reconstructor
	Compositor    *Compositor
	Vision        VisionProvider
	PreviewDPI    int
	// OnPage 每页合成完成后的回调（预览生成等），为 nil 时跳过
	OnPage func(job *PageJob)
}

// NewOrchestrator 创建编排器
func NewOrchestrator(rec *Reconstructor, comp *Compositor) *Orchestrator {
	return &Orchestrator{
		Reconstructor: rec,
		Compositor:    comp,
		PreviewDPI:    150,
	}
}

// Validate 在打开文档之前检查配置
// 配置错误应当在处理任何一页之前暴露，而不是中途失败
func (o *Orchestrator) Validate(opts TaskOptions) error {
	switch opts.Engine {
	case "", EngineText:
	case EngineVision:
		if o.Vision == nil {
			return fmt.Errorf("%w: 未配置视觉翻译后端", ErrEngineUnavailable)
		}
	default:
		return fmt.Errorf("不支持的翻译引擎: %s", opts.Engine)
	}

	if opts.TranslateImages && o.Reconstructor.Images == nil {
		return fmt.Errorf("%w: 图片翻译需要本机安装 tesseract", ErrEngineUnavailable)
	}
	if opts.SourceLang == opts.TargetLang {
		// 同语种任务是合法的空操作，逐单元原样透传
		log.Printf("源语言与目标语言相同 (%s)，任务将原样输出", opts.SourceLang.Name())
	}
	return nil
}

// Run 执行完整的翻译流水线
// 单元级和页级失败都被就地降级，只有文档不可读、
// 配置错误或全部页面失败时才返回错误
func (o *Orchestrator) Run(pdfData []byte, opts TaskOptions, progress ProgressFunc) (*RunResult, error) {
	if err := o.Validate(opts); err != nil {
		return nil, err
	}

	doc, err := OpenPDFDocument(pdfData)
	if err != nil {
		return nil, err
	}
	if doc.PageCount == 0 {
		return nil, fmt.Errorf("%w: 文档没有页面", ErrDocumentUnreadable)
	}

	if opts.SourceLang == "" {
		if lang, ok := DetectDocumentLanguage(doc); ok {
			log.Printf("自动检测到源语言: %s", lang.Name())
			opts.SourceLang = lang
		} else {
			log.Printf("源语言检测失败，按英文处理")
			opts.SourceLang = LangEN
		}
	}

	result := &RunResult{TotalPages: doc.PageCount}
	pdf := o.Compositor.NewDocument()

	for i := range doc.Pages {
		page := &doc.Pages[i]
		job := o.processPage(page, opts, result)

		if err := o.Compositor.RenderPage(pdf, job); err != nil {
			log.Printf("警告：第 %d 页渲染失败，跳过: %v", page.Number+1, err)
			result.FailedPages++
		} else if o.OnPage != nil {
			o.OnPage(job)
		}

		if progress != nil {
			percent := float64(i+1) / float64(doc.PageCount) * 100
			progress(i+1, doc.PageCount, percent)
		}
	}

	if result.FailedPages == doc.PageCount {
		return nil, fmt.Errorf("所有页面处理失败")
	}

	out, err := o.Compositor.Output(pdf)
	if err != nil {
		return nil, fmt.Errorf("生成输出文档失败: %w", err)
	}
	result.Output = out
	return result, nil
}

// processPage 处理一页，任何 panic 降级为原内容透传
func (o *Orchestrator) processPage(page *PageContent, opts TaskOptions, result *RunResult) *PageJob {
	job := &PageJob{
		Number: page.Number,
		Width:  page.Width,
		Height: page.Height,
		Units:  o.Reconstructor.ExtractUnits(page, opts),
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("警告：第 %d 页处理 panic，整页透传原内容: %v", page.Number+1, rec)
			o.passthroughPage(job)
		}
	}()

	if opts.Engine == EngineVision {
		if err := o.visionPage(page, job, opts); err != nil {
			log.Printf("警告：第 %d 页视觉翻译失败，回退到文本引擎: %v", page.Number+1, err)
			o.Reconstructor.ReconstructPage(job, opts)
		}
	} else {
		o.Reconstructor.ReconstructPage(job, opts)
	}

	for _, res := range job.Results {
		switch res.Status {
		case StatusDegraded:
			result.DegradedUnits++
		case StatusSkipped:
			result.SkippedUnits++
		}
	}
	return job
}

// visionPage 视觉引擎路径
// 把抽取出的原页内容渲染成位图交给视觉模型，
// 用返回的定位片段替换文本单元，图片单元原样保留
func (o *Orchestrator) visionPage(page *PageContent, job *PageJob, opts TaskOptions) error {
	o.passthroughPage(job)
	bitmap, err := o.Compositor.RenderPreview(job, o.PreviewDPI)
	if err != nil {
		return fmt.Errorf("渲染页面位图失败: %w", err)
	}

	runs, err := o.Vision.TranslatePage(bitmap, page.Width, page.Height, opts.SourceLang, opts.TargetLang)
	if err != nil {
		return err
	}

	units := make([]*TranslatableUnit, 0, len(runs)+len(page.Images))
	results := make([]TranslatedUnit, 0, cap(units))
	for _, run := range runs {
		unit := &TranslatableUnit{
			Kind:       UnitTextBlock,
			Box:        run.Box,
			SourceText: run.Text,
			SourceLang: opts.SourceLang,
			TargetLang: opts.TargetLang,
			Style:      StyleHints{FontSize: run.FontSize},
		}
		fit, err := o.Reconstructor.Fitter.Fit(run.Box, run.Text, unit.Style, opts.TargetLang)
		if err != nil {
			continue
		}
		units = append(units, unit)
		results = append(results, TranslatedUnit{
			Unit:           unit,
			TranslatedText: run.Text,
			Fit:            fit,
			Status:         StatusSuccess,
		})
	}

	for i := range page.Images {
		img := &page.Images[i]
		unit := &TranslatableUnit{
			Kind:      UnitImageRegion,
			Box:       img.Box,
			ImageData: img.Data,
		}
		units = append(units, unit)
		results = append(results, TranslatedUnit{
			Unit:      unit,
			ImageData: img.Data,
			Status:    StatusSkipped,
			Reason:    "视觉引擎不处理图片单元",
		})
	}

	job.Units = units
	job.Results = results
	return nil
}

// passthroughPage 原样透传一页：不翻译，仅按原位置重绘
func (o *Orchestrator) passthroughPage(job *PageJob) {
	job.Results = make([]TranslatedUnit, len(job.Units))
	for i, unit := range job.Units {
		res := TranslatedUnit{
			Unit:   unit,
			Status: StatusSkipped,
			Reason: "透传原内容",
		}
		switch unit.Kind {
		case UnitTextBlock:
			if unit.Box.Valid() && unit.SourceText != "" {
				if fit, err := o.Reconstructor.Fitter.Fit(unit.Box, unit.SourceText, unit.Style, unit.SourceLang); err == nil {
					res.TranslatedText = unit.SourceText
					res.Fit = fit
				}
			}
		case UnitImageRegion:
			res.ImageData = unit.ImageData
		}
		job.Results[i] = res
	}
}
