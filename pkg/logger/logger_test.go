package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewWithWriter_TagsService(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("production", &buf)
	l.Debug("hidden")
	l.Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a single json record, got %q: %v", buf.String(), err)
	}
	if rec["service"] != serviceName {
		t.Fatalf("expected service attr, got %v", rec["service"])
	}
	if rec["msg"] != "hello" {
		t.Fatalf("unexpected msg %v", rec["msg"])
	}
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("dev", &buf)))
	r.GET("/ping", func(c *gin.Context) {
		From(c.Request.Context()).Info("inside")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "rid-1" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	dec := json.NewDecoder(&buf)
	n := 0
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec["request_id"] != "rid-1" {
			t.Fatalf("record without request id: %v", rec)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("expected handler and summary records, got %d", n)
	}
}
