// Package render turns HTML documents into PDF bytes with a headless browser.
package render

import (
	"context"
	"errors"
	"fmt"
)

// Renderer converts a complete HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

// Request is a single render job.
// Width and Height are optional CSS lengths ("1600px", "8.5in", "210mm"); a bare number means px.
type Request struct {
	HTML      string
	BaseURL   string
	Width     string
	Height    string
	Landscape bool
}

// Layout is the viewport every page is laid out in before printing.
type Layout struct {
	ViewportWidth     int
	ViewportHeight    int
	DeviceScaleFactor float64
}

func DefaultLayout() Layout {
	return Layout{ViewportWidth: 1600, ViewportHeight: 1200, DeviceScaleFactor: 2}
}

type ErrorKind string

const (
	KindEngineUnavailable ErrorKind = "engine_unavailable"
	KindContentLoad       ErrorKind = "content_load"
)

var (
	ErrEngineUnavailable = errors.New("render: engine unavailable")
	ErrContentLoad       = errors.New("render: content did not load")
)

// RenderError carries the failure kind and the underlying engine error.
type RenderError struct {
	Kind ErrorKind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %s: %v", e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Is makes errors.Is match the sentinel for the error's kind.
func (e *RenderError) Is(target error) bool {
	switch target {
	case ErrEngineUnavailable:
		return e.Kind == KindEngineUnavailable
	case ErrContentLoad:
		return e.Kind == KindContentLoad
	}
	return false
}

func engineUnavailable(err error) error {
	return &RenderError{Kind: KindEngineUnavailable, Err: err}
}

func contentLoad(err error) error {
	return &RenderError{Kind: KindContentLoad, Err: err}
}
