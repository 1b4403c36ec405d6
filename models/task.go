package models

import "time"

// 任务状态
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// TranslateTask 一次文档翻译任务
type TranslateTask struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"-"`
	SourceFile     string    `json:"sourceFile"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Status         string    `json:"status"` // pending, processing, completed, failed
	Progress       float64   `json:"progress"`
	CurrentPage    int       `json:"currentPage"`
	TotalPages     int       `json:"totalPages"`
	DegradedUnits  int       `json:"degradedUnits"` // 降级保留原文的单元数
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`
	OutputPath     string    `json:"outputPath,omitempty"`
}

type LLMConfig struct {
	Provider    string            `json:"provider"` // openai, deepseek, ollama, libretranslate, custom
	APIKey      string            `json:"apiKey"`
	APIURL      string            `json:"apiUrl"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"maxTokens"`
	Extra       map[string]string `json:"extra,omitempty"` // 额外参数，用于自定义提供商
}

type TranslateRequest struct {
	SourceLanguage   string    `json:"sourceLanguage,omitempty"` // 为空时自动检测
	TargetLanguage   string    `json:"targetLanguage"`
	TranslateText    *bool     `json:"translateText,omitempty"`   // 默认 true
	TranslateImages  bool      `json:"translateImages,omitempty"` // 需要本机 tesseract
	Engine           string    `json:"engine,omitempty"`          // text（默认）或 vision
	LLMConfig        LLMConfig `json:"llmConfig"`
	UserPrompt       string    `json:"userPrompt,omitempty"`
	ForceRetranslate bool      `json:"forceRetranslate,omitempty"` // 是否强制重新翻译（忽略缓存）
}

// ProgressEvent 任务进度事件，SSE 推送给前端
type ProgressEvent struct {
	TaskID   string  `json:"taskId"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Page     int     `json:"page"`
	Total    int     `json:"total"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
}
