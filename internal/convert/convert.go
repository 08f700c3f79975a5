package convert

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/v2ray-to-clash/internal/fetch"
	"github.com/John-Robertt/v2ray-to-clash/internal/model"
	"github.com/John-Robertt/v2ray-to-clash/internal/render"
	"github.com/John-Robertt/v2ray-to-clash/internal/sub"
	"github.com/John-Robertt/v2ray-to-clash/internal/sub/vmess"
	"github.com/John-Robertt/v2ray-to-clash/internal/template"
)

const (
	DefaultRulesPath  = "rules.template"
	DefaultOutputPath = "v2ray_to_clash.yaml"
)

type Options struct {
	URL string

	RulesPath    string // default rules.template
	OutputPath   string // default v2ray_to_clash.yaml
	TemplatePath string // empty uses the embedded template

	FetchTimeout time.Duration // 0 means no timeout
	Strict       bool          // abort on the first malformed node

	Logger logrus.FieldLogger
}

type Result struct {
	OutputPath string
	Nodes      int
	Skipped    int
	Bytes      int
}

// Run fetches the subscription, converts every vmess node and writes the
// Clash config. Nothing is written unless every stage succeeded.
func Run(ctx context.Context, opt Options) (*Result, error) {
	opt = withDefaults(opt)
	log := opt.Logger

	if strings.TrimSpace(opt.URL) == "" {
		return nil, &ConvertError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "缺少订阅地址 --url",
				Stage:   "validate_request",
				Hint:    "usage: v2ray-to-clash --url <subscription url>",
			},
		}
	}

	// Read local inputs before touching the network.
	rules, err := os.ReadFile(opt.RulesPath)
	if err != nil {
		return nil, &ConvertError{
			AppError: model.AppError{
				Code:    "RULES_READ_ERROR",
				Message: "读取规则模板失败",
				Stage:   "read_rules",
				URL:     opt.RulesPath,
			},
			Cause: err,
		}
	}

	tmpl := template.Default()
	if opt.TemplatePath != "" {
		tmpl, err = template.Load(opt.TemplatePath)
		if err != nil {
			return nil, err
		}
	}

	content, fetchErr := fetch.FetchText(ctx, opt.URL, fetch.Options{
		Timeout: opt.FetchTimeout,
		Logger:  log,
	})
	if fetchErr != nil {
		// Degrade to empty content; the empty node list below reports it.
		log.WithError(fetchErr).Error("failed to fetch subscription content")
		content = ""
	}

	lines, err := sub.DecodeSubscription(content)
	if err != nil {
		return nil, err
	}
	log.WithField("lines", len(lines)).Debug("subscription decoded")

	parsed, err := vmess.ParseNodes(lines, vmess.Options{Strict: opt.Strict, Logger: log})
	if err != nil {
		return nil, err
	}
	if len(parsed.Nodes) == 0 {
		return nil, noNodesError(fetchErr, len(parsed.Skipped))
	}

	out, err := Generate(parsed.Nodes, tmpl, string(rules))
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(opt.OutputPath, []byte(out), 0o644); err != nil {
		return nil, &ConvertError{
			AppError: model.AppError{
				Code:    "WRITE_ERROR",
				Message: "写入配置文件失败",
				Stage:   "write_output",
				URL:     opt.OutputPath,
			},
			Cause: err,
		}
	}

	log.WithFields(logrus.Fields{
		"nodes":   len(parsed.Nodes),
		"skipped": len(parsed.Skipped),
		"out":     opt.OutputPath,
	}).Info("clash config written")

	return &Result{
		OutputPath: opt.OutputPath,
		Nodes:      len(parsed.Nodes),
		Skipped:    len(parsed.Skipped),
		Bytes:      len(out),
	}, nil
}

// Generate renders the Clash document for nodes and appends the rules
// template after a newline. The same inputs always give the same bytes.
func Generate(nodes []model.VMessNode, tmpl *template.Template, rules string) (string, error) {
	blocks, err := render.RenderClash(nodes)
	if err != nil {
		return "", err
	}
	body, err := tmpl.Render(blocks)
	if err != nil {
		return "", err
	}
	if err := template.ValidateClash(body, len(nodes)); err != nil {
		return "", err
	}
	return body + "\n" + rules, nil
}

func noNodesError(fetchErr error, skipped int) error {
	app := model.AppError{
		Code:    "NO_NODES",
		Message: "订阅中没有任何可用的 vmess 节点",
		Stage:   "generate",
	}
	switch {
	case fetchErr != nil:
		app.Hint = "订阅拉取失败"
	case skipped > 0:
		app.Hint = "所有节点均解析失败"
	}
	return &ConvertError{AppError: app, Cause: fetchErr}
}

func withDefaults(opt Options) Options {
	if opt.RulesPath == "" {
		opt.RulesPath = DefaultRulesPath
	}
	if opt.OutputPath == "" {
		opt.OutputPath = DefaultOutputPath
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	return opt
}
