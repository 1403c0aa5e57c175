// Package telemetry consumes the backend's live sentiment and threat event
// stream and keeps a small rolling window of samples for charting.
package telemetry

import (
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Payload field names.
const (
	FieldPositive = "sentiment_positive"
	FieldNegative = "sentiment_negative"
	FieldThreat   = "threat_level"
)

// ErrNotObject is returned for event payloads that are not JSON objects.
var ErrNotObject = errors.New("event payload is not an object")

// Sample is one point of the telemetry chart. Scores are always in [0,1].
type Sample struct {
	CapturedAt time.Time
	Positive   float64
	Negative   float64
	Threat     float64
}

// Label is the chart axis label for the sample.
func (s Sample) Label() string {
	return s.CapturedAt.Format("15:04:05")
}

// ParseSample decodes an event payload into a sample captured at now.
// Scores are read from the top level, or from a nested "data" object when
// the top level carries none of them.
func ParseSample(data []byte, now time.Time) (Sample, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Sample{}, errors.Wrap(err, "parse event payload")
	}
	if obj == nil {
		return Sample{}, ErrNotObject
	}

	fields := obj
	if !hasScores(obj) {
		if nested, ok := obj["data"].(map[string]any); ok {
			fields = nested
		}
	}

	return Sample{
		CapturedAt: now,
		Positive:   score(fields[FieldPositive]),
		Negative:   score(fields[FieldNegative]),
		Threat:     score(fields[FieldThreat]),
	}, nil
}

func hasScores(obj map[string]any) bool {
	for _, k := range []string{FieldPositive, FieldNegative, FieldThreat} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// score coerces a loosely typed value to a number in [0,1]. Anything that
// is missing, unparsable or non-finite becomes 0.
func score(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}
