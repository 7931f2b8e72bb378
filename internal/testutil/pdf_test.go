package testutil

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/digitorus/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinimalPDF_Parses(t *testing.T) {
	doc := MinimalPDF("study 42 (final)")

	rdr, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	assert.Equal(t, 1, rdr.NumPage())
	assert.False(t, rdr.Trailer().Key("Info").IsNull())
}

func TestMinimalPDF_XrefOffsetsPointAtObjects(t *testing.T) {
	doc := MinimalPDF("x")
	for i := 1; i <= 6; i++ {
		marker := []byte(strconv.Itoa(i) + " 0 obj")
		assert.True(t, bytes.Contains(doc, marker), "missing object %d", i)
	}
	assert.True(t, bytes.HasSuffix(doc, []byte("%%EOF\n")))
}
