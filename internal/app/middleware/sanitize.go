package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"apex-http-service/pkg/utils"

	"github.com/gin-gonic/gin"
)

// maxSanitizeBody 超过该大小的请求体不做清洗
const maxSanitizeBody = 1 << 20

// SanitizeJSON 在绑定之前按字段名规则清洗 POST/PUT/PATCH 的 JSON 请求体，
// 无法解析的请求体原样交给后续绑定处理
func SanitizeJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
			c.Next()
			return
		}

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSanitizeBody+1))
		c.Request.Body.Close()
		if err != nil || len(raw) == 0 || len(raw) > maxSanitizeBody {
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			c.Next()
			return
		}

		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		var payload interface{}
		if err := decoder.Decode(&payload); err != nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			c.Next()
			return
		}

		cleaned, err := json.Marshal(utils.SanitizeValue("", payload))
		if err != nil {
			cleaned = raw
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(cleaned))
		c.Request.ContentLength = int64(len(cleaned))
		c.Next()
	}
}
