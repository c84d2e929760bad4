// Package patterns recovers error-pattern labels from generated report
// text and maps them onto the fixed taxonomy shown in the app.
package patterns

import (
	"regexp"
	"strings"
)

// Extractor pulls canonical error-pattern labels out of report text.
type Extractor interface {
	Extract(reportText string) []string
}

// Canonical labels shown in the app.
const (
	LabelMisreading    = "문항 해석 실수"
	LabelMisconception = "개념 오해"
	LabelWrongStrategy = "전략 선택 오류"
	LabelCalculation   = "계산 실수"
	LabelNotation      = "표현 실수"
	LabelProcedure     = "절차 수행 오류"
)

// Table maps raw labels the report prompt asks for onto canonical labels.
// It is never mutated after construction.
type Table struct {
	m map[string]string
}

// NewTable copies pairs into an immutable table.
func NewTable(pairs map[string]string) Table {
	m := make(map[string]string, len(pairs))
	for raw, canonical := range pairs {
		m[raw] = canonical
	}
	return Table{m: m}
}

// Canonical returns the mapped label, or raw itself when unmapped.
func (t Table) Canonical(raw string) string {
	if c, ok := t.m[raw]; ok {
		return c
	}
	return raw
}

// Pairs returns a copy of the mapping.
func (t Table) Pairs() map[string]string {
	out := make(map[string]string, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return out
}

// DefaultTable is the taxonomy the report prompt is written against.
var DefaultTable = NewTable(map[string]string{
	"문제 이해 부족":    LabelMisreading,
	"개념 이해 부족":    LabelMisconception,
	"풀이 방법 잘못 선택": LabelWrongStrategy,
	"계산 실수":       LabelCalculation,
	"단위 실수":       LabelNotation,
	"성급한 판단":      LabelProcedure,
})

// RawLabels lists the raw labels in prompt order.
var RawLabels = []string{
	"문제 이해 부족",
	"개념 이해 부족",
	"풀이 방법 잘못 선택",
	"계산 실수",
	"단위 실수",
	"성급한 판단",
}

// patternLine matches the first "오답 패턴:" line. Bold markers on either
// side of the colon and a full-width colon are accepted.
var patternLine = regexp.MustCompile(`오답[ \t]*패턴[ \t]*\**[ \t]*[:：][ \t]*\**[ \t]*([^\n]*)`)

// RegexExtractor is the line-oriented Extractor used for Korean reports.
type RegexExtractor struct {
	table Table
}

// NewExtractor builds an extractor over table.
func NewExtractor(table Table) *RegexExtractor {
	return &RegexExtractor{table: table}
}

// Extract returns canonical labels in order of appearance, duplicates kept.
// Missing sections yield an empty slice, never an error.
func (e *RegexExtractor) Extract(reportText string) []string {
	out := []string{}
	if reportText == "" {
		return out
	}
	m := patternLine.FindStringSubmatch(reportText)
	if m == nil {
		return out
	}
	for _, seg := range splitSegments(m[1]) {
		out = append(out, e.table.Canonical(seg))
	}
	return out
}

// Extract runs the default extractor.
func Extract(reportText string) []string {
	return NewExtractor(DefaultTable).Extract(reportText)
}

func splitSegments(line string) []string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == '，'
	})
	segs := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.Trim(strings.TrimSpace(f), "*"))
		if f != "" {
			segs = append(segs, f)
		}
	}
	return segs
}
