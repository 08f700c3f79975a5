package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/v2ray-to-clash/internal/convert"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("v2ray-to-clash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	subURL := fs.String("url", "", "订阅地址（必填）")
	rulesPath := fs.String("rules", convert.DefaultRulesPath, "追加在配置末尾的规则模板")
	outPath := fs.String("out", convert.DefaultOutputPath, "输出文件（覆盖写入）")
	templatePath := fs.String("template", "", "自定义 Clash 模板（留空使用内置模板）")
	fetchTimeout := fs.Duration("fetch-timeout", 0, "拉取订阅的超时，0 表示不限制")
	strict := fs.Bool("strict", false, "遇到无法解析的节点时直接退出，而不是跳过")
	logLevel := fs.String("log-level", "info", "日志级别：debug/info/warn/error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.DateTime})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.WithError(err).Error("invalid --log-level")
		return 2
	}
	logger.SetLevel(level)

	if *subURL == "" {
		logger.Error("url is required: --url <subscription url>")
		fs.Usage()
		return 2
	}

	res, err := convert.Run(ctx, convert.Options{
		URL:          *subURL,
		RulesPath:    *rulesPath,
		OutputPath:   *outPath,
		TemplatePath: *templatePath,
		FetchTimeout: *fetchTimeout,
		Strict:       *strict,
		Logger:       logger,
	})
	if err != nil {
		fields := logrus.Fields{}
		if app, ok := convert.AppErrorOf(err); ok {
			fields["stage"] = app.Stage
			fields["code"] = app.Code
			if app.Line > 0 {
				fields["line"] = app.Line
			}
			if app.Hint != "" {
				fields["hint"] = app.Hint
			}
		}
		logger.WithFields(fields).Error(err)
		return 1
	}

	fmt.Fprintf(stdout, "Clash 配置文件已生成: %s\n", res.OutputPath)
	return 0
}
