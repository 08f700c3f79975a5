package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
)

func exampleNode() model.VMessNode {
	return model.VMessNode{
		Type:    "vmess",
		Name:    "test",
		Server:  "1.2.3.4",
		Port:    443,
		UUID:    "uuid1",
		AlterID: 0,
		Cipher:  "ws",
		Network: "ws",
		TLS:     model.TLSValue{Str: "tls", Set: true},
		Path:    "/x",
		Host:    "h.com",
	}
}

func TestRenderClash_ProxyLine(t *testing.T) {
	blocks, err := RenderClash([]model.VMessNode{exampleNode()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `- {"type":"vmess","name":"test","server":"1.2.3.4","port":443,"uuid":"uuid1","alterId":0,"cipher":"auto","tls":true,"network":"ws","path":"/x","ws-opts":{"path":"/x","headers":{"host":"1.2.3.4"}}}`
	if blocks.Proxies != want {
		t.Fatalf("proxies:\n got=%s\nwant=%s", blocks.Proxies, want)
	}
	if blocks.ProxyNames != `- "test"` {
		t.Fatalf("names=%q, want=%q", blocks.ProxyNames, `- "test"`)
	}
}

func TestToClashProxy_TLSAlwaysBool(t *testing.T) {
	tests := []struct {
		name string
		tls  model.TLSValue
		want bool
	}{
		{"string tls", model.TLSValue{Str: "tls", Set: true}, true},
		{"string none", model.TLSValue{Str: "none", Set: true}, false},
		{"bool true", model.TLSValue{Bool: true, IsBool: true, Set: true}, false},
		{"absent", model.TLSValue{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := exampleNode()
			n.TLS = tt.tls
			n.Cipher = "aes-128-gcm"
			p := ToClashProxy(n)
			if p.TLS != tt.want {
				t.Fatalf("tls=%v, want=%v", p.TLS, tt.want)
			}
			if p.Cipher != "auto" {
				t.Fatalf("cipher=%q, want=%q", p.Cipher, "auto")
			}
		})
	}
}

func TestRenderClash_WSOptsEmptyIffNoPath(t *testing.T) {
	n := exampleNode()
	n.Path = ""
	n.Network = "tcp"

	blocks, err := RenderClash([]model.VMessNode{n})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(blocks.Proxies, `"path":"","ws-opts":{}}`) {
		t.Fatalf("ws-opts should be empty, got:\n%s", blocks.Proxies)
	}

	n.Path = "/p"
	p := ToClashProxy(n)
	if p.WSOpts.Path != "/p" || p.WSOpts.Headers == nil || p.WSOpts.Headers.Host != n.Server {
		t.Fatalf("ws-opts=%+v, want path=/p host=%s", p.WSOpts, n.Server)
	}
}

func TestRenderClash_NamesQuotedAndHTMLKept(t *testing.T) {
	n1 := exampleNode()
	n1.Name = `a&b <"x">`
	n2 := exampleNode()
	n2.Name = "香港 01"

	blocks, err := RenderClash([]model.VMessNode{n1, n2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(blocks.Proxies, `"name":"a&b <\"x\">"`) {
		t.Fatalf("html should not be escaped, got:\n%s", blocks.Proxies)
	}
	wantNames := "- \"a&b <\\\"x\\\">\"\n- \"香港 01\""
	if blocks.ProxyNames != wantNames {
		t.Fatalf("names=%q, want=%q", blocks.ProxyNames, wantNames)
	}
	if strings.Count(blocks.Proxies, "\n") != 1 {
		t.Fatalf("want one line per proxy, got:\n%s", blocks.Proxies)
	}
}

func TestRenderClash_NoNodes(t *testing.T) {
	_, err := RenderClash(nil)
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %T: %v", err, err)
	}
	if re.AppError.Code != "NO_NODES" {
		t.Fatalf("code=%q, want=%q", re.AppError.Code, "NO_NODES")
	}
}

func TestYamlDQ(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", `"plain"`},
		{`a"b\c`, `"a\"b\\c"`},
		{"tab\there", `"tab\there"`},
		{"bell\x07", `"bell\x07"`},
		{"🇭🇰 HK", `"🇭🇰 HK"`},
	}
	for _, tt := range tests {
		if got := yamlDQ(tt.in); got != tt.want {
			t.Fatalf("yamlDQ(%q)=%s, want %s", tt.in, got, tt.want)
		}
	}
}
