package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 服务配置，全部来自环境变量（可选 .env 文件）
type Config struct {
	// 监听地址
	Addr string `envconfig:"ADDR" default:":8080"`
	// 开发模式：前端请求代理到本地开发服务器
	DevMode bool `envconfig:"DEV_MODE" default:"false"`
	// 数据目录（上传、缓存、输出按会话隔离存放在其下）
	DataDir string `envconfig:"DATA_DIR" default:"data"`
	// 上传大小上限（MB）
	MaxUploadMB int64 `envconfig:"MAX_UPLOAD_MB" default:"100"`

	// CJK 字体路径，为空时自动在系统字体目录中查找
	CJKFontPath string `envconfig:"CJK_FONT_PATH"`
	// tesseract 可执行文件名或路径
	TesseractBinary string `envconfig:"TESSERACT_BINARY" default:"tesseract"`
	// OCR 置信度阈值，低于该值的文字区域不做替换
	OCRConfidence float64 `envconfig:"OCR_CONFIDENCE" default:"60"`

	// 视觉引擎（Gemini）配置，留空则禁用 vision 引擎
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiAPIURL string `envconfig:"GEMINI_API_URL"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// 页面预览渲染 DPI
	PreviewDPI int `envconfig:"PREVIEW_DPI" default:"150"`
	// 任务保留时长（小时），过期任务及其文件被清理
	TaskRetentionHours int `envconfig:"TASK_RETENTION_HOURS" default:"24"`
}

// Load 加载配置
// .env 不存在不是错误，环境变量覆盖 .env 中的值
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("已加载 .env 文件")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
