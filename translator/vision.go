package translator

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VisionTextRun 视觉模型识别出的一段译文及其版面位置
// 坐标为页面 pt 坐标系，原点左上
type VisionTextRun struct {
	Text     string      `json:"text"`
	Box      BoundingBox `json:"box"`
	FontSize float64     `json:"font_size"`
}

// VisionProvider 整页视觉翻译后端
// 输入为页面位图（PNG）与页面尺寸，输出带位置的译文片段
type VisionProvider interface {
	TranslatePage(image []byte, width, height float64, source, target Language) ([]VisionTextRun, error)
	GetName() string
}

// GeminiVisionProvider Gemini 视觉翻译后端
type GeminiVisionProvider struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
	client  *http.Client
}

// NewGeminiVisionProvider 创建 Gemini 视觉后端
func NewGeminiVisionProvider(apiKey, apiURL, model string) *GeminiVisionProvider {
	if apiURL == "" {
		apiURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiVisionProvider{
		APIKey:  apiKey,
		APIURL:  strings.TrimRight(apiURL, "/"),
		Model:   model,
		Timeout: 120 * time.Second,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// GetName 返回后端名称
func (p *GeminiVisionProvider) GetName() string {
	return "Gemini Vision (" + p.Model + ")"
}

// visionPrompt 结构化提示词：要求模型只输出 JSON 数组
func visionPrompt(width, height float64, source, target Language) string {
	return fmt.Sprintf(`你是一个文档翻译引擎。图片是一页 %.0fx%.0f pt 的文档，请找出其中所有%s文字，翻译成%s。
只输出一个 JSON 数组，每个元素形如：
{"text":"译文","box":{"x":0,"y":0,"width":100,"height":20},"font_size":12}
坐标以 pt 为单位，原点在左上角，box 为该段文字在页面上的位置。
不要输出任何解释或 Markdown 标记。`, width, height, source.Name(), target.Name())
}

// TranslatePage 发送整页位图给视觉模型并解析结构化结果
func (p *GeminiVisionProvider) TranslatePage(image []byte, width, height float64, source, target Language) ([]VisionTextRun, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": visionPrompt(width, height, source, target)},
					{
						"inline_data": map[string]interface{}{
							"mime_type": "image/png",
							"data":      base64.StdEncoding.EncodeToString(image),
						},
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature": 0.1,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.APIURL, p.Model, p.APIKey)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求视觉模型失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w (状态码 %d)", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == 402 {
		return nil, fmt.Errorf("%w (状态码 %d)", ErrQuotaExceeded, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("视觉模型返回错误 (状态码 %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("视觉模型返回空结果")
	}

	return parseVisionRuns(result.Candidates[0].Content.Parts[0].Text)
}

// parseVisionRuns 解析模型输出的 JSON 数组
// 模型偶尔会包上 Markdown 代码块，先剥掉再解析
func parseVisionRuns(raw string) ([]VisionTextRun, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var runs []VisionTextRun
	if err := json.Unmarshal([]byte(raw), &runs); err != nil {
		return nil, fmt.Errorf("解析视觉结果失败: %w", err)
	}

	// 丢弃无效位置的片段，避免合成器画到页外
	valid := runs[:0]
	for _, r := range runs {
		if r.Box.Valid() && strings.TrimSpace(r.Text) != "" {
			if r.FontSize <= 0 {
				r.FontSize = 12
			}
			valid = append(valid, r)
		}
	}
	return valid, nil
}
