package http

import (
	"html/template"
	"strconv"
	"strings"
	"time"

	"bikedash/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatMean renders a mean with one decimal and thousands separators.
func formatMean(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// option is one entry of a multi-select control.
type option struct {
	Value    string
	Label    string
	Selected bool
}

func options(values, selected []string) []option {
	set := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		set[s] = struct{}{}
	}
	out := make([]option, len(values))
	for i, v := range values {
		_, ok := set[v]
		out[i] = option{Value: v, Label: core.DisplayLabel(v), Selected: ok}
	}
	return out
}

var templateFuncs = template.FuncMap{
	"mean":  formatMean,
	"date":  formatDate,
	"label": core.DisplayLabel,
	"join":  strings.Join,
}
