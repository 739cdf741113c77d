package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIDFormat(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	id := generateIDAt("inc", at)

	require.Regexp(t, regexp.MustCompile(`^INC-20260304-050607-[0-9A-F]{4}$`), id)
}

func TestGenerateIDIsMostlyUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		seen[GenerateID("DSP")] = struct{}{}
	}
	// 同一秒内只有两个随机字节，允许极少量碰撞
	assert.Greater(t, len(seen), 40)
}

func TestGenerateToken(t *testing.T) {
	assert.Len(t, GenerateToken(16), 32)
	assert.Len(t, GenerateToken(0), 64)
	assert.NotEqual(t, GenerateToken(16), GenerateToken(16))
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("Sup3rSecret!")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("Sup3rSecret!", hash))
	assert.False(t, CheckPasswordHash("wrong-password", hash))
}
