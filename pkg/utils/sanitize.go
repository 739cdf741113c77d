package utils

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	emailPattern      = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	phoneDisallowed   = regexp.MustCompile(`[^0-9+\-(). ]`)
	identDisallowed   = regexp.MustCompile(`[^A-Za-z0-9_\-]`)
	fileDisallowed    = regexp.MustCompile(`[^A-Za-z0-9._\-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sensitiveKeys 不做任何清洗的字段
var sensitiveKeys = []string{"password", "token", "secret"}

// SanitizeString 去除HTML标签和控制字符，压缩空白
func SanitizeString(s string) string {
	if s == "" {
		return s
	}
	// bluemonday 输出会转义实体，还原后再清洗一次，直到不再变化，防止以实体形式提交的标签被还原
	for i := 0; i < 8; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(s))
		if next == s {
			break
		}
		s = next
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = whitespacePattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.Contains(m, "\n") {
			return "\n"
		}
		return " "
	})
	return strings.TrimSpace(s)
}

// SanitizeEmail 小写化并校验邮箱，不合法返回空字符串
func SanitizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(s) {
		return ""
	}
	return s
}

// SanitizePhone 仅保留数字和 + - ( ) . 空格
func SanitizePhone(s string) string {
	return strings.TrimSpace(phoneDisallowed.ReplaceAllString(s, ""))
}

// SanitizeURL 只允许 http/https
func SanitizeURL(s string) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// SanitizeIdentifier 仅保留字母数字下划线和连字符
func SanitizeIdentifier(s string) string {
	return identDisallowed.ReplaceAllString(strings.TrimSpace(s), "")
}

// SanitizeFilename 去除路径和非法字符
func SanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = fileDisallowed.ReplaceAllString(s, "_")
	s = strings.TrimLeft(s, ".")
	if len(s) > 255 {
		s = s[:255]
	}
	return s
}

// SanitizeValue 根据字段名推断清洗规则，递归处理 map 和数组
func SanitizeValue(key string, v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return sanitizeByKey(key, val)
	case map[string]interface{}:
		return SanitizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = SanitizeValue(key, item)
		}
		return out
	default:
		return v
	}
}

// SanitizeMap 对 map 中每个字段按字段名清洗
func SanitizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = SanitizeValue(k, v)
	}
	return out
}

func sanitizeByKey(key, value string) string {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return value
		}
	}

	switch {
	case strings.Contains(k, "email"):
		return SanitizeEmail(value)
	case strings.Contains(k, "phone") || strings.Contains(k, "mobile"):
		return SanitizePhone(value)
	case k == "url" || strings.HasSuffix(k, "_url") || strings.Contains(k, "website") || strings.Contains(k, "link"):
		return SanitizeURL(value)
	case strings.HasSuffix(k, "_id") || k == "code" || strings.HasSuffix(k, "_number"):
		return SanitizeIdentifier(value)
	case strings.Contains(k, "filename"):
		return SanitizeFilename(value)
	default:
		return SanitizeString(value)
	}
}
