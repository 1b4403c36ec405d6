package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderType 翻译后端类型
type ProviderType string

const (
	ProviderOpenAI         ProviderType = "openai"
	ProviderClaude         ProviderType = "claude"
	ProviderGemini         ProviderType = "gemini"
	ProviderDeepSeek       ProviderType = "deepseek"
	ProviderOllama         ProviderType = "ollama"
	ProviderLibreTranslate ProviderType = "libretranslate" // 确定性翻译后端
	ProviderCustom         ProviderType = "custom"
)

// Provider 翻译后端接口
// 生成式后端与确定性后端共用同一契约，按配置互换
type Provider interface {
	Translate(text string, source, target Language, userPrompt string) (string, error)
	GetName() string
}

// ProviderConfig 后端配置
type ProviderConfig struct {
	Type        ProviderType      `json:"type"`
	APIKey      string            `json:"apiKey"`
	APIURL      string            `json:"apiUrl"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"maxTokens"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// BaseProvider 基础实现，承载 HTTP 客户端与缓存
type BaseProvider struct {
	Config     ProviderConfig
	HTTPClient *http.Client
	Cache      *Cache
}

// NewProvider 创建后端实例
func NewProvider(config ProviderConfig, cache *Cache) (Provider, error) {
	base := &BaseProvider{
		Config: config,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		Cache: cache,
	}

	switch config.Type {
	case ProviderOpenAI, ProviderDeepSeek:
		return &OpenAIProvider{BaseProvider: base}, nil
	case ProviderClaude:
		return &ClaudeProvider{BaseProvider: base}, nil
	case ProviderGemini:
		return &GeminiProvider{BaseProvider: base}, nil
	case ProviderOllama:
		return &OllamaProvider{BaseProvider: base}, nil
	case ProviderLibreTranslate:
		return &LibreTranslateProvider{BaseProvider: base}, nil
	case ProviderCustom:
		return &CustomProvider{BaseProvider: base}, nil
	default:
		return nil, fmt.Errorf("不支持的提供商类型: %s", config.Type)
	}
}

// doRequest 执行 HTTP 请求，限流状态码映射到 ErrRateLimited 供上层重试判断
func (b *BaseProvider) doRequest(req *http.Request) ([]byte, error) {
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w (状态码 %d)", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 返回错误 (状态码 %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (b *BaseProvider) checkCache(text string, source, target Language, userPrompt string) (string, bool) {
	if b.Cache != nil {
		if cached, ok := b.Cache.Get(CacheKey(text, source, target, userPrompt)); ok {
			return cached, true
		}
	}
	return "", false
}

func (b *BaseProvider) saveCache(text string, source, target Language, userPrompt, result string) {
	if b.Cache != nil {
		b.Cache.Set(CacheKey(text, source, target, userPrompt), result)
	}
}

// systemPrompt 构造翻译系统提示词
func systemPrompt(source, target Language, userPrompt string) string {
	p := fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s. Keep the original meaning and style. Only return the translated text without any explanations.",
		source.Name(), target.Name())
	if userPrompt != "" {
		p += " " + userPrompt
	}
	return p
}

// OpenAIProvider OpenAI 兼容的提供商（包括 OpenAI、DeepSeek 等）
type OpenAIProvider struct {
	*BaseProvider
}

func (p *OpenAIProvider) GetName() string {
	return string(p.Config.Type)
}

func (p *OpenAIProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if cached, ok := p.checkCache(text, source, target, userPrompt); ok {
		return cached, nil
	}

	reqBody := map[string]interface{}{
		"model":       p.Config.Model,
		"temperature": p.Config.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(source, target, userPrompt)},
			{"role": "user", "content": text},
		},
	}
	if p.Config.MaxTokens > 0 {
		reqBody["max_tokens"] = p.Config.MaxTokens
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", p.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Config.APIKey)

	body, err := p.doRequest(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("API 未返回翻译结果")
	}

	result := resp.Choices[0].Message.Content
	p.saveCache(text, source, target, userPrompt, result)
	return result, nil
}

// ClaudeProvider Anthropic Claude 提供商
type ClaudeProvider struct {
	*BaseProvider
}

func (p *ClaudeProvider) GetName() string {
	return "claude"
}

func (p *ClaudeProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if cached, ok := p.checkCache(text, source, target, userPrompt); ok {
		return cached, nil
	}

	reqBody := map[string]interface{}{
		"model":       p.Config.Model,
		"max_tokens":  p.Config.MaxTokens,
		"temperature": p.Config.Temperature,
		"system":      systemPrompt(source, target, userPrompt),
		"messages": []map[string]string{
			{"role": "user", "content": text},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", p.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.Config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	body, err := p.doRequest(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("API 未返回翻译结果")
	}

	result := resp.Content[0].Text
	p.saveCache(text, source, target, userPrompt, result)
	return result, nil
}

// GeminiProvider Google Gemini 提供商
type GeminiProvider struct {
	*BaseProvider
}

func (p *GeminiProvider) GetName() string {
	return "gemini"
}

func (p *GeminiProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if cached, ok := p.checkCache(text, source, target, userPrompt); ok {
		return cached, nil
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": systemPrompt(source, target, userPrompt) + "\n\n" + text},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature": p.Config.Temperature,
		},
	}
	if p.Config.MaxTokens > 0 {
		reqBody["generationConfig"].(map[string]interface{})["maxOutputTokens"] = p.Config.MaxTokens
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	// Gemini URL 形如 https://generativelanguage.googleapis.com/v1/models/{model}:generateContent?key={apiKey}
	apiURL := fmt.Sprintf("%s?key=%s", p.Config.APIURL, p.Config.APIKey)

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.doRequest(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("API 未返回翻译结果")
	}

	result := resp.Candidates[0].Content.Parts[0].Text
	p.saveCache(text, source, target, userPrompt, result)
	return result, nil
}

// OllamaProvider Ollama 本地模型提供商
type OllamaProvider struct {
	*BaseProvider
}

func (p *OllamaProvider) GetName() string {
	return "ollama"
}

func (p *OllamaProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if cached, ok := p.checkCache(text, source, target, userPrompt); ok {
		return cached, nil
	}

	reqBody := map[string]interface{}{
		"model":  p.Config.Model,
		"prompt": systemPrompt(source, target, userPrompt) + "\n\n" + text,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": p.Config.Temperature,
		},
	}
	if p.Config.MaxTokens > 0 {
		reqBody["options"].(map[string]interface{})["num_predict"] = p.Config.MaxTokens
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", p.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.doRequest(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Response string `json:"response"`
		Error    string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("API 错误: %s", resp.Error)
	}
	if resp.Response == "" {
		return "", fmt.Errorf("API 未返回翻译结果")
	}

	result := resp.Response
	p.saveCache(text, source, target, userPrompt, result)
	return result, nil
}

// LibreTranslateProvider LibreTranslate 确定性翻译提供商
type LibreTranslateProvider struct {
	*BaseProvider
}

func (p *LibreTranslateProvider) GetName() string {
	return "libretranslate"
}

func (p *LibreTranslateProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if cached, ok := p.checkCache(text, source, target, userPrompt); ok {
		return cached, nil
	}

	reqBody := map[string]interface{}{
		"q":      text,
		"source": string(source),
		"target": string(target),
		"format": "text",
	}
	if p.Config.APIKey != "" {
		reqBody["api_key"] = p.Config.APIKey
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", p.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.doRequest(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		TranslatedText string `json:"translatedText"`
		Error          string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		if strings.Contains(resp.Error, "not supported") {
			return "", fmt.Errorf("%w: %s -> %s", ErrInvalidLanguagePair, source, target)
		}
		return "", fmt.Errorf("翻译错误: %s", resp.Error)
	}
	if resp.TranslatedText == "" {
		return "", fmt.Errorf("API 未返回翻译结果")
	}

	result := resp.TranslatedText
	p.saveCache(text, source, target, userPrompt, result)
	return result, nil
}

// CustomProvider 自定义 API 提供商，默认按 OpenAI 兼容格式请求
type CustomProvider struct {
	*BaseProvider
}

func (p *CustomProvider) GetName() string {
	return "custom"
}

func (p *CustomProvider) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if cached, ok := p.checkCache(text, source, target, userPrompt); ok {
		return cached, nil
	}

	reqBody := map[string]interface{}{
		"model":       p.Config.Model,
		"temperature": p.Config.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(source, target, userPrompt)},
			{"role": "user", "content": text},
		},
	}
	if p.Config.MaxTokens > 0 {
		reqBody["max_tokens"] = p.Config.MaxTokens
	}
	for k, v := range p.Config.Extra {
		reqBody[k] = v
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", p.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.Config.APIKey)
	}

	body, err := p.doRequest(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("API 未返回翻译结果")
	}

	result := resp.Choices[0].Message.Content
	p.saveCache(text, source, target, userPrompt, result)
	return result, nil
}
