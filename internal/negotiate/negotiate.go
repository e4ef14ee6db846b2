// Package negotiate selects the exposition format for a scrape from its
// Accept header.
package negotiate

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lstrojny/prometheus-weather-exporter/internal/metrics"
)

// Param is a media range parameter, e.g. version=1.0.0.
type Param struct {
	Name  string
	Value string
}

// MediaRange is one entry of an Accept header.
type MediaRange struct {
	Type    string
	Subtype string
	// Params holds every parameter in header order, q included.
	Params []Param

	weight   float64
	weighted bool
}

// Weight returns the q value and whether one was given.
func (m MediaRange) Weight() (float64, bool) {
	return m.weight, m.weighted
}

// Specificity is 2 for type/subtype, 1 for type/* and 0 for */*.
func (m MediaRange) Specificity() int {
	switch {
	case m.Type == "*":
		return 0
	case m.Subtype == "*":
		return 1
	default:
		return 2
	}
}

// paramCount is the number of parameters other than q.
func (m MediaRange) paramCount() int {
	n := 0
	for _, p := range m.Params {
		if p.Name != "q" {
			n++
		}
	}
	return n
}

func (m MediaRange) String() string {
	var b strings.Builder
	b.WriteString(m.Type)
	b.WriteByte('/')
	b.WriteString(m.Subtype)
	for _, p := range m.Params {
		b.WriteString("; ")
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

// Matches reports whether m and other name the same media type. Parameters
// are ignored. A wildcard subtype on either side matches any subtype of the
// same top-level type.
func (m MediaRange) Matches(other MediaRange) bool {
	if !strings.EqualFold(m.Type, other.Type) {
		return false
	}
	return strings.EqualFold(m.Subtype, other.Subtype) || m.Subtype == "*" || other.Subtype == "*"
}

// NewMediaRange creates an unweighted media range.
func NewMediaRange(typ, subtype string, params ...Param) MediaRange {
	return MediaRange{Type: typ, Subtype: subtype, Params: params}
}

// WithWeight returns a copy of m with q set to weight.
func (m MediaRange) WithWeight(weight float64) MediaRange {
	m.Params = append(append([]Param(nil), m.Params...), Param{Name: "q", Value: strconv.FormatFloat(weight, 'f', -1, 64)})
	m.weight = weight
	m.weighted = true
	return m
}

// ParseAccept parses an Accept header value. Malformed entries, including
// entries with a weight outside 0..1, are skipped.
func ParseAccept(header string) []MediaRange {
	var ranges []MediaRange
	for _, raw := range strings.Split(header, ",") {
		if m, ok := parseMediaRange(raw); ok {
			ranges = append(ranges, m)
		}
	}
	return ranges
}

func parseMediaRange(raw string) (MediaRange, bool) {
	parts := strings.Split(raw, ";")

	typ, subtype, ok := strings.Cut(strings.TrimSpace(parts[0]), "/")
	typ, subtype = strings.TrimSpace(typ), strings.TrimSpace(subtype)
	if !ok || typ == "" || subtype == "" || strings.Contains(subtype, "/") {
		return MediaRange{}, false
	}
	if typ == "*" && subtype != "*" {
		return MediaRange{}, false
	}

	m := MediaRange{Type: typ, Subtype: subtype}
	for _, rawParam := range parts[1:] {
		rawParam = strings.TrimSpace(rawParam)
		if rawParam == "" {
			continue
		}
		name, value, ok := strings.Cut(rawParam, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if !ok || name == "" {
			return MediaRange{}, false
		}

		if name == "q" {
			weight, err := strconv.ParseFloat(value, 64)
			if err != nil || math.IsNaN(weight) || weight < 0 || weight > 1 {
				return MediaRange{}, false
			}
			m.weight, m.weighted = weight, true
		}
		m.Params = append(m.Params, Param{Name: name, Value: value})
	}

	return m, true
}

// compare orders a before b by priority. It returns a negative number when a
// ranks higher, zero on equal priority.
func compare(a, b MediaRange) int {
	switch {
	case !a.weighted && b.weighted:
		return -1
	case a.weighted && !b.weighted:
		return 1
	case a.weight > b.weight:
		return -1
	case a.weight < b.weight:
		return 1
	}

	if d := b.Specificity() - a.Specificity(); d != 0 {
		return d
	}
	return b.paramCount() - a.paramCount()
}

// SortByPriority returns the ranges ordered by priority: unweighted first,
// then by descending weight, specificity and number of parameters. Ranges of
// equal priority keep their header order.
func SortByPriority(ranges []MediaRange) []MediaRange {
	sorted := append([]MediaRange(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

type supported struct {
	mediaRange MediaRange
	format     metrics.Format
}

var supportedFormats = []supported{
	{
		mediaRange: NewMediaRange("application", "openmetrics-text",
			Param{"charset", "utf-8"}, Param{"version", "1.0.0"}),
		format: metrics.FormatOpenMetrics,
	},
	{
		mediaRange: NewMediaRange("text", "plain",
			Param{"charset", "utf-8"}, Param{"version", "0.0.4"}),
		format: metrics.FormatPrometheus,
	},
}

// SelectFormat returns the format of the highest priority range that
// matches a supported media type. Within a group of equal priority ranges
// OpenMetrics is preferred. Without a match the result is Prometheus.
func SelectFormat(ranges []MediaRange) metrics.Format {
	sorted := SortByPriority(ranges)

	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && compare(sorted[start], sorted[end]) == 0 {
			end++
		}

		for _, s := range supportedFormats {
			for _, m := range sorted[start:end] {
				if s.mediaRange.Matches(m) {
					return s.format
				}
			}
		}
		start = end
	}

	return metrics.FormatPrometheus
}

// FormatForHeader parses header and selects a format from it.
func FormatForHeader(header string) metrics.Format {
	return SelectFormat(ParseAccept(header))
}
