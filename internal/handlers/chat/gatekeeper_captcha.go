package chat

import (
	"math/rand"
	"strings"
)

// Ambiguous glyphs (0/O, 1/I/L) are excluded so the code survives retyping
// from a phone keyboard.
const captchaCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const minCaptchaCodeLength = 4

func generateCaptchaCode(length int) string {
	if length < minCaptchaCodeLength {
		length = minCaptchaCodeLength
	}
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(captchaCharset[rand.Intn(len(captchaCharset))])
	}
	return sb.String()
}

// answerMatches compares ignoring surrounding whitespace and letter case.
func answerMatches(code, answer string) bool {
	return strings.EqualFold(code, strings.TrimSpace(answer))
}
