// Package bookview projects a compiled audit log book into the HTML that gets printed.
package bookview

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"passport-platform/internal/logbook"
)

//go:embed templates/book.html.tmpl
var templatesFS embed.FS

// Header is the passport metadata printed above the event table.
type Header struct {
	ID           int64
	StudyID      int64
	DeploymentID int64
	CreatedAt    time.Time
	CreatedBy    string
	ApprovedAt   time.Time
	ApprovedBy   string
}

// View renders books with the embedded template.
type View struct {
	tmpl *template.Template
}

func New() (*View, error) {
	tmpl, err := template.New("book.html.tmpl").Funcs(template.FuncMap{
		"stamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 MST") },
		"inc":   func(i int) int { return i + 1 },
	}).ParseFS(templatesFS, "templates/book.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("bookview: parse template: %w", err)
	}
	return &View{tmpl: tmpl}, nil
}

// HTML returns the printable document. Entries are expected in timeline order.
func (v *View) HTML(h Header, entries []logbook.Entry) (string, error) {
	var buf bytes.Buffer
	err := v.tmpl.Execute(&buf, struct {
		Passport Header
		Entries  []logbook.Entry
	}{h, entries})
	if err != nil {
		return "", fmt.Errorf("bookview: execute: %w", err)
	}
	return buf.String(), nil
}
