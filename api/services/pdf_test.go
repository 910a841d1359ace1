package services

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/quizforge/api/models"
)

// buildPDF assembles a minimal uncompressed PDF with one text line per page.
// Offsets in the xref table are computed while writing, so the result is
// always well formed.
func buildPDF(t *testing.T, pageTexts []string) []byte {
	t.Helper()

	n := len(pageTexts)
	kids := make([]string, n)
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for i, text := range pageTexts {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, obj := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xrefOffset)
	return buf.Bytes()
}

func TestIngestPDFReadingOrder(t *testing.T) {
	data := buildPDF(t, []string{
		"Alpha is the first Greek letter",
		"Beta follows alpha in the alphabet",
		"Gamma comes third after beta",
	})

	segments, err := IngestPDF(data, 1000, 100)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	for i, seg := range segments {
		assert.Equal(t, i, seg.ID, "IDs follow reading order")
		assert.Equal(t, i+1, seg.Page)
	}
	assert.Contains(t, segments[0].Text, "Alpha")
	assert.Contains(t, segments[1].Text, "Beta")
	assert.Contains(t, segments[2].Text, "Gamma")
}

func TestIngestPDFSplitsLongPages(t *testing.T) {
	long := strings.Repeat("the quick brown fox jumps over the lazy dog ", 10)
	data := buildPDF(t, []string{long})

	segments, err := IngestPDF(data, 100, 20)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	for i, seg := range segments {
		assert.Equal(t, i, seg.ID)
		assert.Equal(t, 1, seg.Page)
		assert.LessOrEqual(t, len([]rune(seg.Text)), 100)
	}
}

func TestIngestPDFInvalidDocument(t *testing.T) {
	cases := map[string][]byte{
		"empty file":  {},
		"not a pdf":   []byte("plain text, definitely not a pdf"),
		"truncated":   []byte("%PDF-1.4\ngarbage"),
		"no text":     buildPDF(t, []string{""}),
		"only spaces": buildPDF(t, []string{"   "}),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			segments, err := IngestPDF(data, 1000, 100)
			require.ErrorIs(t, err, models.ErrInvalidDocument)
			assert.Nil(t, segments)
		})
	}
}

func TestSplitText(t *testing.T) {
	text := "abcdefghij"

	chunks := splitText(text, 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)

	// No overlap
	chunks = splitText(text, 5, 0)
	assert.Equal(t, []string{"abcde", "fghij"}, chunks)

	// Shorter than one chunk
	chunks = splitText("abc", 10, 2)
	assert.Equal(t, []string{"abc"}, chunks)

	// Whitespace only
	assert.Empty(t, splitText("   \n\t ", 10, 2))

	// Nonsense sizes are rejected or corrected
	assert.Nil(t, splitText(text, 0, 0))
	chunks = splitText(text, 4, 7)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
}
