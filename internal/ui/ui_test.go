package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestErrorUsesFallbackForEmptyMessage(t *testing.T) {
	rec := &Recorder{}
	Error(rec, nil, "Chat request failed")
	Error(rec, errors.New("POST /chat failed: 500"), "Chat request failed")

	got := rec.All()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "Chat request failed" || got[0].Level != LevelError {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Text != "POST /chat failed: 500" {
		t.Errorf("got[1].Text = %q", got[1].Text)
	}
}

func TestHelpersTolerateNilNotifier(t *testing.T) {
	OK(nil, "fine")
	Warn(nil, "careful")
	Info(nil, "fyi")
	Error(nil, nil, "nope")
}

func TestPrinterWritesOneLinePerNotification(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	OK(p, "Feedback recorded")
	Error(p, nil, "Feedback failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "Feedback recorded") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Feedback failed") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestLiveDisplayPlainPrintsNewRowsOnly(t *testing.T) {
	var buf bytes.Buffer
	d := NewLiveDisplay("telemetry", &buf, false)

	d.Update("connecting", nil)
	d.Update("open", []LiveLine{{Key: "a", Text: "row a"}})
	d.Update("open", []LiveLine{{Key: "a", Text: "row a"}, {Key: "b", Text: "row b"}})
	d.Finish("bye")

	want := "[CONNECTING] telemetry\n[OPEN] telemetry\nrow a\nrow b\nbye\n"
	if buf.String() != want {
		t.Errorf("output =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestLiveDisplayTTYRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	d := NewLiveDisplay("telemetry", &buf, true)

	d.Update("open", []LiveLine{{Text: "one"}})
	buf.Reset()
	d.Update("open", []LiveLine{{Text: "one"}, {Text: "two"}})

	if !strings.HasPrefix(buf.String(), "\033[3A") {
		t.Errorf("expected cursor-up by 3, got %q", buf.String()[:8])
	}
	if !strings.Contains(buf.String(), "two") {
		t.Error("expected second row to be drawn")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 1*time.Minute + 9*time.Second, "2h1m9s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
