package vmess

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
	"github.com/John-Robertt/v2ray-to-clash/internal/sub"
)

const Scheme = "vmess"

type ParseError struct {
	AppError model.AppError
	// Field is the JSON key that was missing or invalid; empty when the
	// failure is not tied to a single field.
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.AppError.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s（%s）", msg, e.Field)
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, msg, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

type Options struct {
	// Strict aborts on the first malformed descriptor. Otherwise malformed
	// descriptors are skipped and reported in Result.Skipped.
	Strict bool
	Logger logrus.FieldLogger
}

type Result struct {
	Nodes   []model.VMessNode
	Skipped []*ParseError
}

// ParseNodes parses every descriptor line, keeping input order.
func ParseNodes(lines []string, opt Options) (Result, error) {
	logger := opt.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var res Result
	for i, line := range lines {
		n, err := ParseNode(line)
		if err == nil {
			res.Nodes = append(res.Nodes, n)
			continue
		}

		var pe *ParseError
		if !errors.As(err, &pe) {
			return Result{}, err
		}
		pe.AppError.Line = i + 1
		if opt.Strict {
			return Result{}, pe
		}
		logger.WithFields(logrus.Fields{
			"line":  i + 1,
			"code":  pe.AppError.Code,
			"field": pe.Field,
		}).Warnf("skip node: %v", pe)
		res.Skipped = append(res.Skipped, pe)
	}
	return res, nil
}

// descriptor is the JSON object carried by a vmess:// link.
type descriptor struct {
	Ps   string         `json:"ps"`
	Add  string         `json:"add"`
	Port looseInt       `json:"port"`
	ID   string         `json:"id"`
	Aid  looseInt       `json:"aid"`
	Net  string         `json:"net"`
	Path string         `json:"path"`
	Host string         `json:"host"`
	TLS  model.TLSValue `json:"tls"`
}

// ParseNode parses a single "vmess://<base64 json>" descriptor.
func ParseNode(line string) (model.VMessNode, error) {
	line = strings.TrimSpace(line)
	snippet := sub.TruncateSnippet(line, 200)

	scheme, payload, ok := strings.Cut(line, "://")
	if !ok {
		return model.VMessNode{}, newParseError(snippet, "SUB_PARSE_ERROR", "节点缺少 :// 分隔符", "", "", nil)
	}
	if !strings.EqualFold(scheme, Scheme) {
		return model.VMessNode{}, newParseError(snippet, "SUB_UNSUPPORTED_SCHEME", "仅支持 vmess:// 协议", "", "expected: vmess://...", nil)
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return model.VMessNode{}, newParseError(snippet, "SUB_PARSE_ERROR", "vmess:// 后缺少内容", "", "", nil)
	}
	decoded, err := sub.DecodeBase64(payload)
	if err != nil {
		return model.VMessNode{}, newParseError(snippet, "NODE_BASE64_DECODE_ERROR", "vmess base64 解码失败", "", "", err)
	}
	if !utf8.Valid(decoded) {
		return model.VMessNode{}, newParseError(snippet, "NODE_INVALID_UTF8", "vmess base64 解码结果不是合法 UTF-8", "", "", nil)
	}

	d, err := decodeDescriptor(trimJSON(decoded), snippet)
	if err != nil {
		return model.VMessNode{}, err
	}
	if err := d.validate(snippet); err != nil {
		return model.VMessNode{}, err
	}

	return model.VMessNode{
		Type:    Scheme,
		Name:    d.Ps,
		Server:  d.Add,
		Port:    d.Port.v,
		UUID:    d.ID,
		AlterID: d.Aid.v,
		Cipher:  d.Net,
		Network: d.Net,
		TLS:     d.TLS,
		Path:    d.Path,
		Host:    d.Host,
	}, nil
}

// decodeDescriptor decodes field by field so a type mismatch names its key.
// Unknown keys (v, type, scy, sni, ...) are ignored.
func decodeDescriptor(b []byte, snippet string) (descriptor, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return descriptor{}, newParseError(snippet, "NODE_JSON_ERROR", "vmess JSON 解析失败", "", "", err)
	}

	var d descriptor
	fields := []struct {
		key string
		dst any
	}{
		{"ps", &d.Ps},
		{"add", &d.Add},
		{"port", &d.Port},
		{"id", &d.ID},
		{"aid", &d.Aid},
		{"net", &d.Net},
		{"path", &d.Path},
		{"host", &d.Host},
		{"tls", &d.TLS},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return descriptor{}, newParseError(snippet, "NODE_FIELD_INVALID", "vmess 字段类型不合法", f.key, "", err)
		}
	}
	return d, nil
}

func (d *descriptor) validate(snippet string) error {
	// Values stay verbatim; blank counts as missing.
	required := []lo.Tuple2[string, bool]{
		lo.T2("ps", strings.TrimSpace(d.Ps) != ""),
		lo.T2("add", strings.TrimSpace(d.Add) != ""),
		lo.T2("id", strings.TrimSpace(d.ID) != ""),
		lo.T2("port", d.Port.set),
	}
	for _, r := range required {
		if !r.B {
			return newParseError(snippet, "NODE_FIELD_MISSING", "vmess 缺少必需字段", r.A, "", nil)
		}
	}

	// Every rendered string must survive as YAML.
	rendered := []lo.Tuple2[string, string]{
		lo.T2("ps", d.Ps),
		lo.T2("add", d.Add),
		lo.T2("id", d.ID),
		lo.T2("net", d.Net),
		lo.T2("path", d.Path),
	}
	for _, f := range rendered {
		if i := strings.IndexFunc(f.B, notPrintable); i >= 0 {
			return newParseError(snippet, "NODE_FIELD_INVALID", "字段包含非法控制字符", f.A, fmt.Sprintf("rune %U at byte %d", []rune(f.B[i:])[0], i), nil)
		}
	}

	if d.Port.v < 1 || d.Port.v > 65535 {
		return newParseError(snippet, "NODE_FIELD_INVALID", "端口超出范围", "port", "1..65535", nil)
	}
	if d.Aid.v < 0 {
		return newParseError(snippet, "NODE_FIELD_INVALID", "alterId 不能为负数", "aid", "", nil)
	}
	return nil
}

// notPrintable reports runes outside the YAML printable set and the
// YAML line breaks (NEL, LS, PS), which a quoted scalar would fold.
func notPrintable(r rune) bool {
	switch {
	case r == '\t':
		return false
	case r < 0x20, r == 0x7f:
		return true
	case r >= 0x80 && r <= 0x9f:
		return true
	case r == 0x2028, r == 0x2029, r == 0xfffe, r == 0xffff:
		return true
	}
	return false
}

// looseInt accepts a JSON number or a numeric string. "" counts as unset.
type looseInt struct {
	v   int
	set bool
}

func (n *looseInt) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > math.MaxInt32 {
			return fmt.Errorf("not an integer: %v", x)
		}
		*n = looseInt{v: int(x), set: true}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			*n = looseInt{}
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*n = looseInt{v: i, set: true}
	default:
		return fmt.Errorf("want number or numeric string, got %T", v)
	}
	return nil
}

// trimJSON drops bytes before the first '{' and after the last '}'; some
// subscriptions append a newline or padding garbage to the encoded object.
func trimJSON(b []byte) []byte {
	s := bytes.IndexByte(b, '{')
	e := bytes.LastIndexByte(b, '}')
	if s == -1 || e == -1 || e < s {
		return b
	}
	return b[s : e+1]
}

func newParseError(snippet, code, message, field, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_node",
			Snippet: snippet,
			Hint:    hint,
		},
		Field: field,
		Cause: cause,
	}
}
