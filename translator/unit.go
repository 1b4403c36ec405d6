package translator

import "strings"

// Language 支持的语言代码
type Language string

const (
	LangEN Language = "en"
	LangJA Language = "ja"
	LangZH Language = "zh"
)

// ParseLanguage 解析语言代码
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LangEN:
		return LangEN, true
	case LangJA:
		return LangJA, true
	case LangZH:
		return LangZH, true
	}
	return "", false
}

// Name 语言的英文名称（用于构造翻译提示词）
func (l Language) Name() string {
	switch l {
	case LangEN:
		return "English"
	case LangJA:
		return "Japanese"
	case LangZH:
		return "Simplified Chinese"
	}
	return string(l)
}

// TesseractPack 对应的 Tesseract 语言包标识
// 源语言之外始终附加英文，混排文档很常见
func (l Language) TesseractPack() string {
	switch l {
	case LangJA:
		return "jpn+eng"
	case LangZH:
		return "chi_sim+eng"
	default:
		return "eng"
	}
}

// IsCJK 是否为中日韩文字
func (l Language) IsCJK() bool {
	return l == LangJA || l == LangZH
}

// BoundingBox 页面坐标系中的包围盒（原点左上角，单位与源页面一致）
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid 包围盒面积是否为正
// 零或负面积说明源文件元数据损坏，对应单元直接跳过，避免适配计算除零
func (b BoundingBox) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// UnitKind 可翻译单元类型
type UnitKind int

const (
	UnitTextBlock UnitKind = iota
	UnitImageRegion
)

// StyleHints 源文本块的样式信息（尽力还原，来自源文件的字体度量）
type StyleHints struct {
	FontName string  `json:"fontName"`
	FontSize float64 `json:"fontSize"`
	Bold     bool    `json:"bold"`
}

// TranslatableUnit 页面上的一个原子内容单元：文本块或图片区域
type TranslatableUnit struct {
	Kind       UnitKind    `json:"kind"`
	Box        BoundingBox `json:"box"`
	SourceText string      `json:"sourceText,omitempty"`
	ImageData  []byte      `json:"-"`
	SourceLang Language    `json:"sourceLang"`
	TargetLang Language    `json:"targetLang"`
	Style      StyleHints  `json:"style"`
}

// UnitStatus 单元处理结果状态
type UnitStatus int

const (
	// StatusSuccess 翻译成功
	StatusSuccess UnitStatus = iota
	// StatusDegraded 重试耗尽后回退到原文，任务继续
	StatusDegraded
	// StatusSkipped 无需处理（空白文本、无文字图片、无效包围盒）
	StatusSkipped
)

func (s UnitStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusDegraded:
		return "degraded"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// TranslatedUnit 单元处理结果，与输入单元一一对应
type TranslatedUnit struct {
	Unit           *TranslatableUnit
	TranslatedText string
	ImageData      []byte
	Fit            *FitPlan
	Status         UnitStatus
	Reason         string
}

// PageJob 一页的全部工作：有序的单元序列与等长的结果序列
// 不变量：len(Results) == len(Units)，顺序严格对应，合成阶段按下标取结果
type PageJob struct {
	Number  int
	Width   float64
	Height  float64
	Units   []*TranslatableUnit
	Results []TranslatedUnit
}

// TaskOptions 一次翻译任务的选项
type TaskOptions struct {
	SourceLang      Language
	TargetLang      Language
	TranslateText   bool
	TranslateImages bool
	// Engine 处理引擎："text"（逐块翻译）或 "vision"（视觉模型整页重建）
	Engine string
	// UserPrompt 附加给翻译提示词的用户指令
	UserPrompt string
}
