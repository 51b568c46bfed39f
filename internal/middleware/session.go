package middleware

import (
	"log"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// BrowserIDKey 会话中保存浏览器 ID 的键
	BrowserIDKey = "browser-id"
	// ClientIDHeader 标签页 ID 请求头（EventSource 无法设置请求头，可用 client_id 查询参数）
	ClientIDHeader = "X-Client-ID"
)

// Session 为每个浏览器分配稳定 ID，并识别发起请求的标签页
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		browserID, _ := session.Get(BrowserIDKey).(string)
		if browserID == "" {
			browserID = uuid.NewString()
			session.Set(BrowserIDKey, browserID)
			if err := session.Save(); err != nil {
				log.Printf("[Session] 保存浏览器 ID 失败: %v", err)
			}
		}

		clientID := strings.TrimSpace(c.GetHeader(ClientIDHeader))
		if clientID == "" {
			clientID = strings.TrimSpace(c.Query("client_id"))
		}
		if clientID == "" {
			// 未声明标签页时整个浏览器视为一个标签页
			clientID = browserID
		}

		c.Set("browser_id", browserID)
		c.Set("client_id", clientID)
		c.Next()
	}
}

// GetBrowserID 从上下文获取浏览器 ID
func GetBrowserID(c *gin.Context) string {
	return c.GetString("browser_id")
}

// GetClientID 从上下文获取标签页 ID
func GetClientID(c *gin.Context) string {
	return c.GetString("client_id")
}
