package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const SessionCookieName = "session_id"

type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionManager 会话管理器
// 每个浏览器会话一个 ID，任务和文件按会话隔离
type SessionManager struct {
	sessions map[string]*Session
	timeout  time.Duration
	mu       sync.RWMutex
	done     chan struct{}
}

// NewSessionManager 创建会话管理器并启动过期清理协程
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	sm := &SessionManager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		done:     make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// Close 停止清理协程
func (sm *SessionManager) Close() {
	close(sm.done)
}

// generateSessionID 生成随机会话 ID
func generateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand 失败说明系统熵源不可用，直接崩溃好过发弱 ID
		panic("无法生成会话 ID: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// GetOrCreateSession 获取或创建会话
func (sm *SessionManager) GetOrCreateSession(sessionID string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sessionID != "" {
		if session, exists := sm.sessions[sessionID]; exists {
			if time.Since(session.LastSeen) < sm.timeout {
				session.LastSeen = time.Now()
				return session
			}
			// 会话过期，删除
			delete(sm.sessions, sessionID)
		}
	}

	session := &Session{
		ID:        generateSessionID(),
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}
	sm.sessions[session.ID] = session
	return session
}

// GetSession 获取会话（不创建新会话）
func (sm *SessionManager) GetSession(sessionID string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, false
	}
	if time.Since(session.LastSeen) >= sm.timeout {
		delete(sm.sessions, sessionID)
		return nil, false
	}
	session.LastSeen = time.Now()
	return session, true
}

// cleanupLoop 定期清理过期会话
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.mu.Lock()
			now := time.Now()
			for id, session := range sm.sessions {
				if now.Sub(session.LastSeen) >= sm.timeout {
					delete(sm.sessions, id)
				}
			}
			sm.mu.Unlock()
		}
	}
}

// Middleware Gin 中间件：确保每个请求都有会话
func (sm *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(SessionCookieName)

		session := sm.GetOrCreateSession(sessionID)

		if sessionID != session.ID {
			isSecure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
			c.SetCookie(
				SessionCookieName,
				session.ID,
				int(sm.timeout.Seconds()),
				"/",
				"",
				isSecure,
				true, // httpOnly
			)
		}

		c.Set("sessionID", session.ID)
		c.Next()
	}
}

// GetSessionID 从上下文获取会话 ID
func GetSessionID(c *gin.Context) string {
	if id, ok := c.Get("sessionID"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
