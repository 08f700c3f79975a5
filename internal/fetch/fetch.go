package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
)

const (
	stage = "fetch_sub"

	defaultMaxBytes     = 5 * 1024 * 1024
	defaultMaxRedirects = 5
)

type Options struct {
	Timeout      time.Duration // 0 means no timeout
	MaxBytes     int64         // default 5 MiB
	MaxRedirects int           // default 5

	// Logger receives the non-2xx warning. Nil uses the logrus standard logger.
	Logger logrus.FieldLogger
}

type FetchError struct {
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// FetchText performs a single GET and returns the response body.
//
// The status code is not checked: a non-2xx response is returned like any
// other body and only logged. Callers decide whether empty content is an
// error.
func FetchText(ctx context.Context, rawURL string, opt Options) (string, error) {
	maxRedirects := opt.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = defaultMaxRedirects
	}
	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	logger := opt.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if maxBytes <= 0 {
		return "", newFetchError(rawURL, "INVALID_ARGUMENT", "响应大小上限必须大于 0", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", newFetchError(rawURL, "INVALID_ARGUMENT", "仅允许 http/https URL", errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   opt.Timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 1st redirect => len(via)==1.
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", newFetchError(rawURL, "INVALID_ARGUMENT", "请求 URL 不合法", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		switch {
		case errors.Is(err, errTooManyRedirects):
			return "", newFetchError(rawURL, "FETCH_FAILED", fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects), err)
		case errors.Is(err, errRedirectBadScheme):
			return "", newFetchError(rawURL, "INVALID_ARGUMENT", "重定向目标仅允许 http/https", err)
		case isTimeout(err):
			return "", newFetchError(rawURL, "FETCH_TIMEOUT", "拉取订阅超时", err)
		}
		return "", newFetchError(rawURL, "FETCH_FAILED", "拉取订阅失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WithFields(logrus.Fields{
			"url":    u.Redacted(),
			"status": resp.StatusCode,
		}).Warn("subscription responded with non-2xx status, using body anyway")
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", newFetchError(rawURL, "FETCH_TIMEOUT", "拉取订阅超时", err)
		}
		return "", newFetchError(rawURL, "FETCH_FAILED", "读取订阅响应失败", err)
	}
	if int64(len(body)) > maxBytes {
		return "", newFetchError(rawURL, "TOO_LARGE", fmt.Sprintf("订阅内容过大（>%d bytes）", maxBytes), nil)
	}

	return string(body), nil
}

func isTimeout(err error) bool {
	// Go may wrap errors (e.g. *url.Error).
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func newFetchError(rawURL, code, message string, cause error) error {
	return &FetchError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   stage,
			URL:     rawURL,
		},
		Cause: cause,
	}
}
