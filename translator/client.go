package translator

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// TranslatorClient 翻译客户端（带重试与降级）
type TranslatorClient struct {
	Provider      Provider
	RetryTimes    int
	RetryInterval time.Duration

	// sleep 可注入，测试时替换以免真实等待
	sleep func(time.Duration)
}

// NewTranslatorClient 创建翻译客户端
func NewTranslatorClient(config ProviderConfig, cache *Cache) (*TranslatorClient, error) {
	provider, err := NewProvider(config, cache)
	if err != nil {
		return nil, err
	}

	return &TranslatorClient{
		Provider:      provider,
		RetryTimes:    3,
		RetryInterval: 500 * time.Millisecond,
		sleep:         time.Sleep,
	}, nil
}

// NewTranslatorClientWith 用现成的 Provider 创建客户端
func NewTranslatorClientWith(provider Provider) *TranslatorClient {
	return &TranslatorClient{
		Provider:      provider,
		RetryTimes:    3,
		RetryInterval: 500 * time.Millisecond,
		sleep:         time.Sleep,
	}
}

// WithRetry 设置重试参数
func (c *TranslatorClient) WithRetry(times int, interval time.Duration) *TranslatorClient {
	c.RetryTimes = times
	c.RetryInterval = interval
	return c
}

// Translate 翻译文本（带重试，间隔逐次递增）
// 空白文本与相同语言对直接原样返回，不产生网络调用
func (c *TranslatorClient) Translate(text string, source, target Language, userPrompt string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if source == target {
		return text, nil
	}

	var lastErr error
	for attempt := 0; attempt < c.RetryTimes; attempt++ {
		if attempt > 0 {
			c.sleep(c.RetryInterval * time.Duration(attempt))
		}

		result, err := c.Provider.Translate(text, source, target, userPrompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// 永久性错误重试也不会好
		if errors.Is(err, ErrInvalidLanguagePair) {
			break
		}
	}

	return "", fmt.Errorf("翻译失败（重试 %d 次后）: %w", c.RetryTimes, lastErr)
}

// TranslateOrOriginal 翻译文本，重试耗尽后降级为原文
// 单元级失败永不中断整份文档的任务
func (c *TranslatorClient) TranslateOrOriginal(text string, source, target Language, userPrompt string) (string, UnitStatus) {
	result, err := c.Translate(text, source, target, userPrompt)
	if err != nil {
		log.Printf("警告：翻译降级为原文: %v", err)
		return text, StatusDegraded
	}
	return result, StatusSuccess
}

// TranslateBatch 批量翻译，逐条降级，结果、状态都与输入等长且顺序一致
func (c *TranslatorClient) TranslateBatch(texts []string, source, target Language, userPrompt string) ([]string, []UnitStatus) {
	results := make([]string, len(texts))
	statuses := make([]UnitStatus, len(texts))

	for i, text := range texts {
		results[i], statuses[i] = c.TranslateOrOriginal(text, source, target, userPrompt)
	}

	return results, statuses
}
