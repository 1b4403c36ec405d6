package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Cache 翻译缓存（按会话隔离的目录，文件落盘）
type Cache struct {
	dir      string
	mutex    sync.RWMutex
	disabled bool
}

// NewCache 创建缓存
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Disable 禁用缓存读取（强制重新翻译时使用，写入仍然进行）
func (c *Cache) Disable() {
	c.disabled = true
}

// Get 获取缓存
func (c *Cache) Get(key string) (string, bool) {
	if c == nil || c.disabled {
		return "", false
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set 写入缓存
func (c *Cache) Set(key, value string) error {
	if c == nil {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	return os.WriteFile(c.entryPath(key), []byte(value), 0644)
}

func (c *Cache) entryPath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".txt")
}

// CacheKey 生成缓存键，语言对参与哈希，避免跨语言串台
func CacheKey(text string, source, target Language, userPrompt string) string {
	data := map[string]string{
		"text":       text,
		"source":     string(source),
		"target":     string(target),
		"userPrompt": userPrompt,
	}
	jsonData, _ := json.Marshal(data)
	return string(jsonData)
}
