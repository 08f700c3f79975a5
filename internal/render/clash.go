package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
)

// ToClashProxy maps a parsed node to its Clash entry.
//
// cipher is always "auto" and tls is only true for the string "tls".
// ws-opts.headers.host takes the node's server, not its host field; clients
// generated from earlier files depend on that.
func ToClashProxy(n model.VMessNode) model.ClashProxy {
	p := model.ClashProxy{
		Type:    n.Type,
		Name:    n.Name,
		Server:  n.Server,
		Port:    n.Port,
		UUID:    n.UUID,
		AlterID: n.AlterID,
		Cipher:  "auto",
		TLS:     n.TLS.Enabled(),
		Network: n.Network,
		Path:    n.Path,
	}
	if n.Path != "" {
		p.WSOpts = model.WSOpts{
			Path:    n.Path,
			Headers: &model.WSHeaders{Host: n.Server},
		}
	}
	return p
}

// RenderClash renders the proxies block (one JSON flow mapping per line)
// and the proxy-name block used inside proxy groups.
func RenderClash(nodes []model.VMessNode) (Blocks, error) {
	if len(nodes) == 0 {
		return Blocks{}, &RenderError{
			AppError: model.AppError{
				Code:    "NO_NODES",
				Message: "没有任何可用节点",
				Stage:   "render",
			},
		}
	}

	proxyLines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, err := flowJSON(ToClashProxy(n))
		if err != nil {
			return Blocks{}, &RenderError{
				AppError: model.AppError{
					Code:    "RENDER_ERROR",
					Message: "节点序列化失败",
					Stage:   "render",
					Snippet: n.Name,
				},
				Cause: err,
			}
		}
		proxyLines = append(proxyLines, "- "+s)
	}

	nameLines := lo.Map(nodes, func(n model.VMessNode, _ int) string {
		return "- " + yamlDQ(n.Name)
	})

	return Blocks{
		Proxies:    strings.Join(proxyLines, "\n"),
		ProxyNames: strings.Join(nameLines, "\n"),
	}, nil
}

// flowJSON marshals v on one line. JSON is a YAML flow mapping, so the
// line can be used as a list item as is. HTML escaping is off to keep
// names like "a&b" readable.
func flowJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func yamlDQ(s string) string {
	// YAML double-quoted scalar; control characters use \xNN escapes.
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
