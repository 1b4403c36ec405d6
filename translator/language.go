package translator

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// languageDetector 懒加载的语言检测器，限定在支持的三种语言内
// 构建检测模型开销较大，进程内只做一次
func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.Japanese, lingua.Chinese).
			Build()
	})
	return detector
}

// DetectLanguage 检测文本的语言（限 en/ja/zh）
// 用于校验 OCR 识别结果的文字系统，以及推断未声明的源语言
func DetectLanguage(text string) (Language, bool) {
	if text == "" {
		return "", false
	}

	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return "", false
	}

	switch lang {
	case lingua.English:
		return LangEN, true
	case lingua.Japanese:
		return LangJA, true
	case lingua.Chinese:
		return LangZH, true
	}
	return "", false
}

// DetectDocumentLanguage 从文档前几页的文本推断源语言
// 采样上限避免大文档把全文喂给检测器
func DetectDocumentLanguage(doc *SourceDocument) (Language, bool) {
	var sb strings.Builder
	for i := range doc.Pages {
		for _, block := range doc.Pages[i].TextBlocks {
			sb.WriteString(block.Text)
			sb.WriteByte('\n')
			if sb.Len() > 4096 {
				return DetectLanguage(sb.String())
			}
		}
	}
	return DetectLanguage(sb.String())
}
