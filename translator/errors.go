package translator

import "errors"

// 错误分级：配置错误在启动时暴露一次；文档错误使任务不启动；
// 瞬时错误重试后降级；单元/页面级错误被就地吸收，永不上升为任务失败。
var (
	// ErrEngineUnavailable OCR 引擎缺失（未安装或不在 PATH 上），属配置错误
	ErrEngineUnavailable = errors.New("OCR 引擎不可用")

	// ErrDocumentUnreadable 输入不是有效的 PDF 容器
	ErrDocumentUnreadable = errors.New("无法读取文档")

	// ErrRateLimited 翻译后端限流（HTTP 429）
	ErrRateLimited = errors.New("翻译接口限流")

	// ErrQuotaExceeded 视觉模型配额耗尽
	ErrQuotaExceeded = errors.New("视觉模型配额不足")

	// ErrInvalidLanguagePair 后端不支持请求的语言对
	ErrInvalidLanguagePair = errors.New("不支持的语言对")
)
