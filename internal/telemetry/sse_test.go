package telemetry

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderParsesFields(t *testing.T) {
	stream := ": keepalive\n" +
		"id: 1\n" +
		"data: {\"threat_level\":0.2}\n\n" +
		"event: metrics\r\n" +
		"retry: 3000\r\n" +
		"data: line one\r\n" +
		"data:line two\r\n\r\n" +
		"id: 9\n\n" +
		"data: tail"

	r := NewReader(strings.NewReader(stream))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", ev.ID)
	assert.Equal(t, `{"threat_level":0.2}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "metrics", ev.Type)
	assert.Equal(t, 3*time.Second, ev.Retry)
	assert.Equal(t, "line one\nline two", string(ev.Data))
	assert.Equal(t, "1", ev.ID)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(ev.Data))
	assert.Equal(t, "9", ev.ID)
	assert.Equal(t, "9", r.LastID())

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderRejectsOversizedLines(t *testing.T) {
	r := NewReader(strings.NewReader("data: " + strings.Repeat("x", MaxLineSize+10) + "\n\n"))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrLineTooLong)
}
