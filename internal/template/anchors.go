package template

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
	"github.com/John-Robertt/v2ray-to-clash/internal/render"
)

const (
	AnchorProxies    = "#@PROXIES@#"
	AnchorProxyNames = "#@PROXY_NAMES@#"
)

//go:embed clash.yaml
var defaultClash string

// Template is a validated Clash config skeleton. The proxies anchor occurs
// exactly once; the proxy-names anchor occurs at least once, once per group
// that lists every node. A Template is immutable after Parse.
type Template struct {
	name            string
	lines           []string
	newline         string
	endsWithNewline bool

	proxiesLine int
	namesLines  []int
}

var defaultTemplate = sync.OnceValue(func() *Template {
	t, err := Parse("embedded:clash.yaml", defaultClash)
	if err != nil {
		panic(fmt.Sprintf("embedded clash template is invalid: %v", err))
	}
	return t
})

// Default returns the built-in template: listening ports 7890/7891, rule
// mode, and the fixed proxy groups, two of which list every node next to
// the static vpn-eu and vpn-sg proxies.
func Default() *Template { return defaultTemplate() }

// Load reads and parses an operator supplied template file.
func Load(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &TemplateError{
			AppError: model.AppError{
				Code:    "TEMPLATE_READ_ERROR",
				Message: "读取模板文件失败",
				Stage:   "load_template",
				URL:     path,
			},
			Cause: err,
		}
	}
	return Parse(path, string(b))
}

// Parse validates anchors and remembers where to inject.
func Parse(name, text string) (*Template, error) {
	if text == "" {
		return nil, &TemplateError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "template 不能为空",
				Stage:   "validate_template",
				URL:     name,
			},
		}
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	t := &Template{
		name:            name,
		lines:           strings.Split(normalized, "\n"),
		newline:         detectNewline(text),
		endsWithNewline: strings.HasSuffix(normalized, "\n"),
		proxiesLine:     -1,
	}

	for i, line := range t.lines {
		// Fail fast if an anchor appears but is not standalone.
		for _, anchor := range []string{AnchorProxies, AnchorProxyNames} {
			if strings.Contains(line, anchor) && strings.TrimSpace(line) != anchor {
				return nil, anchorNotStandalone(name, line, anchor)
			}
		}

		switch strings.TrimSpace(line) {
		case AnchorProxies:
			if t.proxiesLine != -1 {
				return nil, anchorDup(name, AnchorProxies)
			}
			t.proxiesLine = i
		case AnchorProxyNames:
			t.namesLines = append(t.namesLines, i)
		default:
			continue
		}

		// Clash YAML minimal check: anchor indent should not be 0.
		if leadingWhitespace(line) == "" {
			return nil, sectionError(name, "Clash 模板锚点缩进不能为 0（应位于对应列表下方）")
		}
	}

	if t.proxiesLine == -1 {
		return nil, anchorMissing(name, AnchorProxies)
	}
	if len(t.namesLines) == 0 {
		return nil, anchorMissing(name, AnchorProxyNames)
	}
	return t, nil
}

func (t *Template) Name() string { return t.name }

// ProxyNameSlots reports how many groups receive the full node list.
func (t *Template) ProxyNameSlots() int { return len(t.namesLines) }

// Render injects blocks into a copy of the template. Each block line
// inherits the anchor's indentation; the template's newline style is kept.
func (t *Template) Render(blocks render.Blocks) (string, error) {
	if blocks.Proxies == "" || blocks.ProxyNames == "" {
		return "", &TemplateError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "proxies 与 proxy 名称不能为空",
				Stage:   "validate_template",
				URL:     t.name,
			},
		}
	}

	lines := make([]string, len(t.lines))
	copy(lines, t.lines)

	lines[t.proxiesLine] = indentBlock(lines[t.proxiesLine], blocks.Proxies)
	for _, i := range t.namesLines {
		lines[i] = indentBlock(lines[i], blocks.ProxyNames)
	}

	out := strings.Join(lines, "\n")
	if !t.endsWithNewline {
		out = strings.TrimSuffix(out, "\n")
	}
	if t.newline == "\r\n" {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}

func anchorMissing(templateName, anchor string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_ANCHOR_MISSING",
			Message: fmt.Sprintf("缺少锚点 %s", anchor),
			Stage:   "validate_template",
			URL:     templateName,
		},
	}
}

func anchorNotStandalone(templateName, line, anchor string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_SECTION_ERROR",
			Message: "锚点必须独占一行",
			Stage:   "validate_template",
			URL:     templateName,
			Snippet: line,
			Hint:    anchor,
		},
	}
}

func anchorDup(templateName, anchor string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_ANCHOR_DUP",
			Message: fmt.Sprintf("锚点 %s 重复出现", anchor),
			Stage:   "validate_template",
			URL:     templateName,
		},
	}
}

func sectionError(templateName, msg string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_SECTION_ERROR",
			Message: msg,
			Stage:   "validate_template",
			URL:     templateName,
		},
	}
}

func indentBlock(anchorLine string, block string) string {
	indent := leadingWhitespace(anchorLine)
	blockLines := strings.Split(block, "\n")
	for i := range blockLines {
		blockLines[i] = indent + blockLines[i]
	}
	return strings.Join(blockLines, "\n")
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) {
		if line[i] == ' ' || line[i] == '\t' {
			i++
			continue
		}
		break
	}
	return line[:i]
}

func detectNewline(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
