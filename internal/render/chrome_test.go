package render

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary on PATH")
	return ""
}

func TestChromeRenderer_PrintsPDF(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a browser")
	}
	r := NewChromeRenderer(ChromeOptions{ExecPath: findChrome(t), Timeout: 30 * time.Second})

	pdf, err := r.Render(context.Background(), Request{
		HTML:    `<!doctype html><html><head><title>book</title></head><body><h1>Audit Log Book</h1></body></html>`,
		BaseURL: "https://example.invalid/",
		Width:   "210mm",
		Height:  "297mm",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")), "expected pdf header")
}
