package sub

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestDecodeSubscription_LinesInOrder(t *testing.T) {
	raw := strings.Join([]string{
		"vmess://AAAA",
		"",
		"   ",
		"vmess://BBBB\r",
		"\tvmess://CCCC  ",
		"",
	}, "\n")
	content := base64.StdEncoding.EncodeToString([]byte(raw))

	got, err := DecodeSubscription(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"vmess://AAAA", "vmess://BBBB", "vmess://CCCC"}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want=%d (%q)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line[%d]=%q, want=%q", i, got[i], want[i])
		}
	}
}

func TestDecodeSubscription_StripsNonAlphabet(t *testing.T) {
	raw := "vmess://AAAA\nvmess://BBBB\n"
	b64 := base64.StdEncoding.EncodeToString([]byte(raw))
	// Wrap at 8 columns and surround with noise a CDN or editor might add.
	var wrapped strings.Builder
	wrapped.WriteString("\uFEFF  ")
	for i := 0; i < len(b64); i += 8 {
		end := min(i+8, len(b64))
		wrapped.WriteString(b64[i:end])
		wrapped.WriteString("\r\n")
	}

	got, err := DecodeSubscription(wrapped.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "vmess://AAAA" || got[1] != "vmess://BBBB" {
		t.Fatalf("got=%q", got)
	}
}

func TestDecodeSubscription_URLSafeAndUnpadded(t *testing.T) {
	raw := "vmess://??>>\n"
	content := base64.RawURLEncoding.EncodeToString([]byte(raw))

	got, err := DecodeSubscription(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "vmess://??>>" {
		t.Fatalf("got=%q", got)
	}
}

func TestDecodeSubscription_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n", "!!!"} {
		got, err := DecodeSubscription(in)
		if err != nil {
			t.Fatalf("DecodeSubscription(%q) unexpected error: %v", in, err)
		}
		if len(got) != 0 {
			t.Fatalf("DecodeSubscription(%q)=%q, want empty", in, got)
		}
	}
}

func TestDecodeSubscription_Malformed(t *testing.T) {
	_, err := DecodeSubscription("A")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if de.AppError.Code != "SUB_BASE64_DECODE_ERROR" {
		t.Fatalf("code=%q, want=%q", de.AppError.Code, "SUB_BASE64_DECODE_ERROR")
	}
	if de.AppError.Stage != "decode_sub" {
		t.Fatalf("stage=%q, want=%q", de.AppError.Stage, "decode_sub")
	}
}

func TestDecodeSubscription_InvalidUTF8Replaced(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("vmess://\xff\n"))
	got, err := DecodeSubscription(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "vmess://\uFFFD" {
		t.Fatalf("got=%q", got)
	}
}

func TestTruncateSnippet(t *testing.T) {
	if got := TruncateSnippet("ab\r\ncd", 3); got != "abc" {
		t.Fatalf("got=%q, want=%q", got, "abc")
	}
	if got := TruncateSnippet("abc", 0); got != "" {
		t.Fatalf("got=%q, want empty", got)
	}
}
