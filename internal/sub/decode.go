package sub

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
)

type DecodeError struct {
	AppError model.AppError
	Cause    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// DecodeSubscription turns a base64 subscription body into node descriptor
// lines.
//
// Every byte outside the base64 alphabets (standard and URL-safe) is dropped
// before decoding, so line-wrapped or whitespace-padded bodies decode fine.
// Empty content yields an empty list and no error. Invalid UTF-8 in the
// decoded text is replaced with U+FFFD rather than rejected.
func DecodeSubscription(content string) ([]string, error) {
	filtered := keepBase64Alphabet(content)
	if filtered == "" {
		return nil, nil
	}

	b, err := DecodeBase64(filtered)
	if err != nil {
		return nil, &DecodeError{
			AppError: model.AppError{
				Code:    "SUB_BASE64_DECODE_ERROR",
				Message: "订阅 base64 解码失败",
				Stage:   "decode_sub",
				Snippet: TruncateSnippet(filtered, 200),
			},
			Cause: err,
		}
	}

	text := strings.ToValidUTF8(string(b), "\uFFFD")
	text = strings.TrimPrefix(text, "\uFEFF")

	return lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	}), nil
}

// DecodeBase64 tries the standard alphabet (with padding) first, then
// URL-safe, then both unpadded variants.
func DecodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	// Padding that does not match the payload length.
	if trimmed := strings.TrimRight(s, "="); trimmed != s {
		for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
			if b, err := enc.DecodeString(trimmed); err == nil {
				return b, nil
			}
		}
	}
	return nil, lastErr
}

func keepBase64Alphabet(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '+' || c == '/' || c == '=' || c == '_' || c == '-':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// TruncateSnippet strips line breaks and caps s at max bytes.
func TruncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
