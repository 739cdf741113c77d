package utils

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RandomInt32 生成一个安全的随机32位整数
func RandomInt32() int32 {
	var num int32
	err := binary.Read(rand.Reader, binary.BigEndian, &num)
	if err != nil {
		panic("generate random int32 failed")
	}

	return num
}

// GenerateID 生成可读编号: PREFIX-YYYYMMDD-HHMMSS-XXXX
// 时间戳加两个随机字节，只保证不透明唯一，不用于安全场景
func GenerateID(prefix string) string {
	return generateIDAt(prefix, time.Now().UTC())
}

func generateIDAt(prefix string, now time.Time) string {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("generate random bytes failed")
	}
	suffix := strings.ToUpper(hex.EncodeToString(b[:]))
	return strings.ToUpper(prefix) + "-" + now.Format("20060102-150405") + "-" + suffix
}

// GenerateToken 生成n字节随机数的十六进制字符串
func GenerateToken(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("generate random bytes failed")
	}
	return hex.EncodeToString(b)
}

// GenerateRequestID 生成请求ID
func GenerateRequestID() string {
	return uuid.NewString()
}
