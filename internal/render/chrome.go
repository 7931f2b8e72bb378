package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"passport-platform/pkg/logger"
)

// ChromeOptions configures ChromeRenderer.
type ChromeOptions struct {
	// ExecPath is the Chrome binary; empty lets chromedp search the usual locations.
	ExecPath string
	Layout   Layout
	// Timeout bounds one attempt: browser start, content load, network idle and printing.
	Timeout time.Duration
	Limiter Limiter
}

// ChromeRenderer prints HTML through a headless Chrome started for each call.
type ChromeRenderer struct {
	opts ChromeOptions
}

func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	if opts.Layout == (Layout{}) {
		opts.Layout = DefaultLayout()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLocalLimiter(1)
	}
	return &ChromeRenderer{opts: opts}
}

// Render waits for a render slot and prints req. An engine that failed to start or died is retried once.
func (r *ChromeRenderer) Render(ctx context.Context, req Request) ([]byte, error) {
	release, err := r.opts.Limiter.Acquire(ctx)
	if err != nil {
		return nil, engineUnavailable(err)
	}
	defer release()

	log := logger.From(ctx)
	start := time.Now()

	pdf, err := r.renderOnce(ctx, req)
	if errors.Is(err, ErrEngineUnavailable) && ctx.Err() == nil {
		log.Warn("render engine unavailable, retrying once", "err", err)
		pdf, err = r.renderOnce(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("pdf rendered", "bytes", len(pdf), "duration_ms", time.Since(start).Milliseconds())
	return pdf, nil
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("incognito", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-application-cache", true),
		chromedp.Flag("disk-cache-size", "0"),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(r.opts.Layout.ViewportWidth, r.opts.Layout.ViewportHeight),
	)
	if r.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
	}
	return opts
}

// renderOnce owns one browser process. Every exit path cancels its contexts, which kills Chrome.
func (r *ChromeRenderer) renderOnce(parent context.Context, req Request) ([]byte, error) {
	params, err := r.printParams(req)
	if err != nil {
		return nil, contentLoad(err)
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, r.opts.Timeout)
	defer cancelTimeout()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(timeoutCtx, r.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// An empty Run starts the browser and opens the first tab.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, engineUnavailable(err)
	}

	lc := newLifecycleWaiter()
	chromedp.ListenTarget(browserCtx, lc.observe)

	doc := injectBaseHref(req.HTML, req.BaseURL)
	var pdf []byte
	err = chromedp.Run(browserCtx,
		emulation.SetDeviceMetricsOverride(
			int64(r.opts.Layout.ViewportWidth),
			int64(r.opts.Layout.ViewportHeight),
			r.opts.Layout.DeviceScaleFactor,
			false,
		),
		emulation.SetEmulatedMedia().WithMedia("print"),
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			lc.arm(tree.Frame.ID)
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return lc.wait(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, classify(err, timeoutCtx, browserCtx)
	}
	if len(pdf) == 0 {
		return nil, contentLoad(errors.New("empty pdf"))
	}
	return pdf, nil
}

func (r *ChromeRenderer) printParams(req Request) (*page.PrintToPDFParams, error) {
	// A document's @page size applies only when the request names no paper size.
	p := page.PrintToPDF().
		WithPrintBackground(true).
		WithPreferCSSPageSize(req.Width == "" && req.Height == "").
		WithLandscape(req.Landscape)
	if req.Width != "" {
		w, err := lengthInches(req.Width)
		if err != nil {
			return nil, fmt.Errorf("width: %w", err)
		}
		p = p.WithPaperWidth(w)
	}
	if req.Height != "" {
		h, err := lengthInches(req.Height)
		if err != nil {
			return nil, fmt.Errorf("height: %w", err)
		}
		p = p.WithPaperHeight(h)
	}
	return p, nil
}

// classify separates a browser that went away from a page that never settled.
// Hitting our own deadline is a content_load failure; a dead browser is engine_unavailable.
func classify(err error, timeoutCtx, browserCtx context.Context) error {
	if timeoutCtx.Err() != nil {
		return contentLoad(err)
	}
	if browserCtx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext) {
		return engineUnavailable(err)
	}
	return contentLoad(err)
}

// lifecycleWaiter waits for "load" followed by "networkIdle" on the main frame of the document set after arm.
// Events from the about:blank navigation arrive before arm and are ignored, as are events from child frames.
type lifecycleWaiter struct {
	mu     sync.Mutex
	armed  bool
	frame  cdp.FrameID
	loader cdp.LoaderID
	loaded bool
	idle   chan struct{}
	once   sync.Once
}

func newLifecycleWaiter() *lifecycleWaiter {
	return &lifecycleWaiter{idle: make(chan struct{})}
}

func (w *lifecycleWaiter) arm(frame cdp.FrameID) {
	w.mu.Lock()
	w.armed = true
	w.frame = frame
	w.mu.Unlock()
}

func (w *lifecycleWaiter) observe(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed || e.FrameID != w.frame {
		return
	}
	switch e.Name {
	case "init":
		// A new loader starts a new document; its load has not happened yet.
		if e.LoaderID != w.loader {
			w.loader = e.LoaderID
			w.loaded = false
		}
	case "load":
		w.loaded = true
	case "networkIdle":
		if w.loaded {
			w.once.Do(func() { close(w.idle) })
		}
	}
}

func (w *lifecycleWaiter) wait(ctx context.Context) error {
	select {
	case <-w.idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for network idle: %w", ctx.Err())
	}
}
