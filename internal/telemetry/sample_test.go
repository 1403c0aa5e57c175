package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

func TestParseSampleCoercesLooseValues(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Sample
	}{
		{"numbers", `{"sentiment_positive":0.9,"sentiment_negative":0.05,"threat_level":0.3}`, Sample{Positive: 0.9, Negative: 0.05, Threat: 0.3}},
		{"missing threat", `{"sentiment_positive":0.4,"sentiment_negative":0.1}`, Sample{Positive: 0.4, Negative: 0.1}},
		{"strings", `{"sentiment_positive":"0.7","sentiment_negative":"bad","threat_level":null}`, Sample{Positive: 0.7}},
		{"non finite", `{"sentiment_positive":"NaN","sentiment_negative":"Inf","threat_level":"-Inf"}`, Sample{}},
		{"clamped", `{"sentiment_positive":1.7,"sentiment_negative":-0.2,"threat_level":1}`, Sample{Positive: 1, Threat: 1}},
		{"nested envelope", `{"ts":1,"name":"chat","data":{"threat_level":0.6}}`, Sample{Threat: 0.6}},
		{"unrelated event", `{"msg":"hello"}`, Sample{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSample([]byte(tt.payload), t0)
			require.NoError(t, err)
			tt.want.CapturedAt = t0
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSampleRejectsMalformedPayloads(t *testing.T) {
	for _, payload := range []string{`not json`, `[1,2]`, `null`, `"text"`, ``} {
		_, err := ParseSample([]byte(payload), t0)
		assert.Error(t, err, "payload %q", payload)
	}
}

func TestSampleLabel(t *testing.T) {
	assert.Equal(t, "15:04:05", Sample{CapturedAt: t0}.Label())
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(20)
	for i := 0; i < 30; i++ {
		w.Push(Sample{Threat: float64(i) / 100})
		assert.LessOrEqual(t, w.Len(), 20)
		last, ok := w.Last()
		require.True(t, ok)
		assert.Equal(t, float64(i)/100, last.Threat)
	}
	got := w.Samples()
	require.Len(t, got, 20)
	assert.Equal(t, 0.10, got[0].Threat)
	assert.Equal(t, 0.29, got[19].Threat)
}

func TestHeatOf(t *testing.T) {
	assert.Equal(t, Heat{}, HeatOf(nil))

	calm := []Sample{{Positive: 0.8, Negative: 0.8, Threat: 0.5}}
	h := HeatOf(calm)
	assert.Equal(t, Heat{}, h)
	assert.Equal(t, "#4ade80", h.Color(SeriesPositive))
	assert.Equal(t, "#f87171", h.Color(SeriesNegative))
	assert.Equal(t, "#facc15", h.Color(SeriesThreat))

	hot := append(calm, Sample{Positive: 0.81}, Sample{Threat: 0.51})
	h = HeatOf(hot)
	assert.Equal(t, Heat{Positive: true, Threat: true}, h)
	assert.Equal(t, "#22c55e", h.Color(SeriesPositive))
	assert.Equal(t, "#f87171", h.Color(SeriesNegative))
	assert.Equal(t, "#eab308", h.Color(SeriesThreat))
}
