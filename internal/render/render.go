package render

import (
	"fmt"

	"github.com/John-Robertt/v2ray-to-clash/internal/model"
)

// Blocks are the dynamic slots of the Clash template, one YAML list item
// per line, without indentation.
type Blocks struct {
	Proxies    string
	ProxyNames string
}

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }
