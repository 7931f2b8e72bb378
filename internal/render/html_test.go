package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectBaseHref(t *testing.T) {
	cases := []struct {
		name, doc, base, want string
	}{
		{
			name: "after first head",
			doc:  `<html><head><title>x</title></head><body><head></head></body></html>`,
			base: "https://assets.example/",
			want: `<html><head><base href="https://assets.example/"><title>x</title></head><body><head></head></body></html>`,
		},
		{
			name: "case insensitive with attributes",
			doc:  `<HTML><HEAD lang="en"><link rel="stylesheet" href="a.css"></HEAD></HTML>`,
			base: "https://a/",
			want: `<HTML><HEAD lang="en"><base href="https://a/"><link rel="stylesheet" href="a.css"></HEAD></HTML>`,
		},
		{
			name: "header is not head",
			doc:  `<header></header><head></head>`,
			base: "https://a/",
			want: `<header></header><head><base href="https://a/"></head>`,
		},
		{
			name: "no base url",
			doc:  `<head></head>`,
			want: `<head></head>`,
		},
		{
			name: "no head",
			doc:  `<body>x</body>`,
			base: "https://a/",
			want: `<body>x</body>`,
		},
		{
			name: "escapes url",
			doc:  `<head></head>`,
			base: `https://a/?q="x"`,
			want: `<head><base href="https://a/?q=&#34;x&#34;"></head>`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, injectBaseHref(tc.doc, tc.base))
		})
	}
}

func TestLengthInches(t *testing.T) {
	cases := map[string]float64{
		"96px":   1,
		"192":    2,
		"8.5in":  8.5,
		"2.54cm": 1,
		"25.4mm": 1,
		" 1IN ":  1,
	}
	for in, want := range cases {
		got, err := lengthInches(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, bad := range []string{"", "abc", "10pt", "-1in", "0"} {
		_, err := lengthInches(bad)
		assert.Error(t, err, bad)
	}
}
