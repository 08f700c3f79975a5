package convert

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/v2ray-to-clash/internal/fetch"
	"github.com/John-Robertt/v2ray-to-clash/internal/model"
	"github.com/John-Robertt/v2ray-to-clash/internal/render"
	"github.com/John-Robertt/v2ray-to-clash/internal/sub"
	"github.com/John-Robertt/v2ray-to-clash/internal/sub/vmess"
	"github.com/John-Robertt/v2ray-to-clash/internal/template"
)

// ConvertError covers the pipeline's own failures: bad options, the rules
// template, the empty node list and the output write.
type ConvertError struct {
	AppError model.AppError
	Cause    error
}

func (e *ConvertError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ConvertError) Unwrap() error { return e.Cause }

// AppErrorOf extracts the stage payload from any pipeline error.
func AppErrorOf(err error) (model.AppError, bool) {
	if err == nil {
		return model.AppError{}, false
	}

	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce.AppError, true
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.AppError, true
	}

	var de *sub.DecodeError
	if errors.As(err, &de) {
		return de.AppError, true
	}

	var pe *vmess.ParseError
	if errors.As(err, &pe) {
		app := pe.AppError
		if app.Hint == "" && pe.Field != "" {
			app.Hint = "field: " + pe.Field
		}
		return app, true
	}

	var re *render.RenderError
	if errors.As(err, &re) {
		return re.AppError, true
	}

	var te *template.TemplateError
	if errors.As(err, &te) {
		return te.AppError, true
	}

	return model.AppError{}, false
}
