package template

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
)

type clashDoc struct {
	Port        int              `yaml:"port"`
	SocksPort   int              `yaml:"socks-port"`
	Mode        string           `yaml:"mode"`
	Proxies     []map[string]any `yaml:"proxies"`
	ProxyGroups []clashGroup     `yaml:"proxy-groups"`
}

type clashGroup struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	URL      string   `yaml:"url"`
	Interval int      `yaml:"interval"`
	Proxies  []string `yaml:"proxies"`
}

// ValidateClash parses a rendered document and checks that it still is a
// Clash config: every proxy parsed back as a mapping with a name, and every
// group has a name, a type and members.
func ValidateClash(doc string, wantProxies int) error {
	var c clashDoc
	if err := yaml.Unmarshal([]byte(doc), &c); err != nil {
		return outputError("生成结果不是合法 YAML", "", err)
	}

	if len(c.Proxies) != wantProxies {
		return outputError(fmt.Sprintf("proxies 数量不一致：%d，期望 %d", len(c.Proxies), wantProxies), "", nil)
	}
	for _, p := range c.Proxies {
		name, _ := p["name"].(string)
		if name == "" {
			return outputError("proxy 缺少 name", fmt.Sprint(p), nil)
		}
	}

	if len(c.ProxyGroups) == 0 {
		return outputError("缺少 proxy-groups", "", nil)
	}
	for _, g := range c.ProxyGroups {
		if strings.TrimSpace(g.Name) == "" || g.Type == "" || len(g.Proxies) == 0 {
			return outputError("proxy-group 缺少 name/type/proxies", g.Name, nil)
		}
		if g.Type == "url-test" && (g.URL == "" || g.Interval <= 0) {
			return outputError("url-test 策略组缺少 url 或 interval", g.Name, nil)
		}
	}
	return nil
}

func outputError(msg, snippet string, cause error) error {
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return &TemplateError{
		AppError: model.AppError{
			Code:    "OUTPUT_INVALID",
			Message: msg,
			Stage:   "validate_output",
			Snippet: snippet,
		},
		Cause: cause,
	}
}
