package telemetry

// Hot thresholds per series.
const (
	HotPositive = 0.8
	HotNegative = 0.8
	HotThreat   = 0.5
)

// Series identifies one plotted line.
type Series int

const (
	SeriesPositive Series = iota
	SeriesNegative
	SeriesThreat
)

func (s Series) String() string {
	switch s {
	case SeriesPositive:
		return "Positive"
	case SeriesNegative:
		return "Negative"
	default:
		return "Threat"
	}
}

// Colors is the normal and hot colour of a series.
type Colors struct {
	Normal string
	Hot    string
}

// Palette maps each series to its colours.
var Palette = map[Series]Colors{
	SeriesPositive: {Normal: "#4ade80", Hot: "#22c55e"},
	SeriesNegative: {Normal: "#f87171", Hot: "#dc2626"},
	SeriesThreat:   {Normal: "#facc15", Hot: "#eab308"},
}

// Heat records which series crossed their threshold somewhere in a window.
type Heat struct {
	Positive bool
	Negative bool
	Threat   bool
}

// HeatOf derives the hot flags from samples.
func HeatOf(samples []Sample) Heat {
	var h Heat
	for _, s := range samples {
		h.Positive = h.Positive || s.Positive > HotPositive
		h.Negative = h.Negative || s.Negative > HotNegative
		h.Threat = h.Threat || s.Threat > HotThreat
	}
	return h
}

// Hot reports the flag for series s.
func (h Heat) Hot(s Series) bool {
	switch s {
	case SeriesPositive:
		return h.Positive
	case SeriesNegative:
		return h.Negative
	default:
		return h.Threat
	}
}

// Color returns the colour series s should be drawn in.
func (h Heat) Color(s Series) string {
	c := Palette[s]
	if h.Hot(s) {
		return c.Hot
	}
	return c.Normal
}

// Value returns the score of series s.
func (s Sample) Value(series Series) float64 {
	switch series {
	case SeriesPositive:
		return s.Positive
	case SeriesNegative:
		return s.Negative
	default:
		return s.Threat
	}
}
