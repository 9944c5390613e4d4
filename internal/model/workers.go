package model

// Workers defines per-stage parallelism. Only summarize fans out; the other
// stages are strictly sequential so row order is preserved.
type Workers struct {
	Summarize int `json:"summarize,omitempty" yaml:"summarize" validate:"gte=0"`
}

// RenderConfig carries presentation settings into a renderer call. It is
// passed explicitly on every call; renderers keep no global style state.
type RenderConfig struct {
	Title          string `json:"title,omitempty" yaml:"title"`
	FloatPrecision int    `json:"floatPrecision,omitempty" yaml:"float_precision"`
	SheetPrefix    string `json:"sheetPrefix,omitempty" yaml:"sheet_prefix"`
	HeaderStyle    bool   `json:"headerStyle,omitempty" yaml:"header_style"`
}

// Precision returns the configured float precision, -1 meaning shortest form
func (c RenderConfig) Precision() int {
	if c.FloatPrecision <= 0 {
		return -1
	}
	return c.FloatPrecision
}
