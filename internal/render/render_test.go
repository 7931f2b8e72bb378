package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderError_MatchesKindSentinel(t *testing.T) {
	cause := errors.New("exec: chrome not found")
	err := engineUnavailable(cause)

	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.NotErrorIs(t, err, ErrContentLoad)
	assert.ErrorIs(t, err, cause)

	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindEngineUnavailable, re.Kind)

	assert.ErrorIs(t, contentLoad(cause), ErrContentLoad)
}

func TestClassify(t *testing.T) {
	live := context.Background()

	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-expired.Done()

	assert.ErrorIs(t, classify(errors.New("x"), expired, live), ErrContentLoad)
	assert.ErrorIs(t, classify(errors.New("x"), live, expired), ErrEngineUnavailable)
	assert.ErrorIs(t, classify(errors.New("x"), live, live), ErrContentLoad)
}

func TestLifecycleWaiter_IgnoresEventsBeforeArm(t *testing.T) {
	w := newLifecycleWaiter()
	w.observe(&page.EventLifecycleEvent{FrameID: "main", Name: "load"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, w.wait(ctx))

	w.arm("main")
	w.observe(&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", Name: "load"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"})
	require.NoError(t, w.wait(context.Background()))
}

func TestLifecycleWaiter_IgnoresChildFrames(t *testing.T) {
	w := newLifecycleWaiter()
	w.arm("main")
	w.observe(&page.EventLifecycleEvent{FrameID: "iframe-1", LoaderID: "l2", Name: "init"})
	w.observe(&page.EventLifecycleEvent{FrameID: "iframe-1", LoaderID: "l2", Name: "load"})
	w.observe(&page.EventLifecycleEvent{FrameID: "iframe-1", LoaderID: "l2", Name: "networkIdle"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, w.wait(ctx))

	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l1", Name: "load"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l1", Name: "networkIdle"})
	require.NoError(t, w.wait(context.Background()))
}

func TestLifecycleWaiter_NewLoaderResetsLoad(t *testing.T) {
	w := newLifecycleWaiter()
	w.arm("main")
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l1", Name: "init"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l1", Name: "load"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l2", Name: "init"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l2", Name: "networkIdle"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, w.wait(ctx))

	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l2", Name: "load"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l2", Name: "networkIdle"})
	require.NoError(t, w.wait(context.Background()))
}

func TestPrintParams(t *testing.T) {
	r := NewChromeRenderer(ChromeOptions{})
	p, err := r.printParams(Request{Width: "8.5in", Height: "11in", Landscape: true})
	require.NoError(t, err)
	assert.True(t, p.PrintBackground)
	assert.False(t, p.PreferCSSPageSize)
	assert.True(t, p.Landscape)
	assert.InDelta(t, 8.5, p.PaperWidth, 1e-9)
	assert.InDelta(t, 11, p.PaperHeight, 1e-9)

	p, err = r.printParams(Request{Width: "210mm"})
	require.NoError(t, err)
	assert.False(t, p.PreferCSSPageSize)

	p, err = r.printParams(Request{})
	require.NoError(t, err)
	assert.True(t, p.PreferCSSPageSize)
	assert.False(t, p.Landscape)

	_, err = r.printParams(Request{Width: "wide"})
	assert.Error(t, err)
}

func TestNewChromeRenderer_Defaults(t *testing.T) {
	r := NewChromeRenderer(ChromeOptions{})
	assert.Equal(t, DefaultLayout(), r.opts.Layout)
	assert.Equal(t, 45*time.Second, r.opts.Timeout)
	assert.NotNil(t, r.opts.Limiter)
}

func TestRender_MissingBinaryIsEngineUnavailable(t *testing.T) {
	r := NewChromeRenderer(ChromeOptions{ExecPath: "/nonexistent/chrome", Timeout: 5 * time.Second})
	_, err := r.Render(context.Background(), Request{HTML: "<html><head></head><body>x</body></html>"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}
