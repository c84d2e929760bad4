package patterns

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"no colon", "오답 패턴 없음", []string{}},
		{"no section", "## 학습 분석\n학생은 잘 풀었습니다.", []string{}},
		{
			"bold label with unmapped passthrough",
			"## 분석\n**오답 패턴**: 계산 실수, 알수없는유형\n## 제안",
			[]string{"계산 실수", "알수없는유형"},
		},
		{
			"mapped labels in order",
			"**오답 패턴**: 개념 이해 부족, 문제 이해 부족",
			[]string{"개념 오해", "문항 해석 실수"},
		},
		{
			"duplicates preserved",
			"오답 패턴: 계산 실수, 계산 실수",
			[]string{"계산 실수", "계산 실수"},
		},
		{
			"empty segments dropped",
			"오답 패턴: , 단위 실수,, ",
			[]string{"표현 실수"},
		},
		{
			"colon inside bold",
			"- **오답 패턴:** 성급한 판단",
			[]string{"절차 수행 오류"},
		},
		{
			"full-width colon and comma",
			"오답 패턴： 풀이 방법 잘못 선택， 계산 실수",
			[]string{"전략 선택 오류", "계산 실수"},
		},
		{
			"only first line used",
			"오답 패턴: 계산 실수\n오답 패턴: 단위 실수",
			[]string{"계산 실수"},
		},
		{
			"label with nothing after it",
			"오답 패턴:\n계산 실수",
			[]string{},
		},
		{
			"heading mention is skipped",
			"### 오답 패턴 분석\n내용\n**오답 패턴**: 단위 실수",
			[]string{"표현 실수"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestCanonicalizationRoundTrip(t *testing.T) {
	for raw, canonical := range DefaultTable.Pairs() {
		got := Extract("오답 패턴: " + raw)
		if len(got) != 1 || got[0] != canonical {
			t.Errorf("Extract(%q) = %q, want [%q]", raw, got, canonical)
		}
	}
	if got := Extract("오답 패턴: xyz"); len(got) != 1 || got[0] != "xyz" {
		t.Errorf("unmapped label = %q, want [xyz]", got)
	}
}

func TestRawLabelsCoverTable(t *testing.T) {
	pairs := DefaultTable.Pairs()
	if len(RawLabels) != len(pairs) {
		t.Fatalf("RawLabels has %d entries, table has %d", len(RawLabels), len(pairs))
	}
	for _, raw := range RawLabels {
		if _, ok := pairs[raw]; !ok {
			t.Errorf("raw label %q missing from table", raw)
		}
	}
}

func TestTableIsImmutable(t *testing.T) {
	src := map[string]string{"a": "b"}
	tbl := NewTable(src)
	src["a"] = "changed"
	tbl.Pairs()["a"] = "changed too"
	if got := tbl.Canonical("a"); got != "b" {
		t.Fatalf("table mutated through caller map: %q", got)
	}
}

func TestExtractNeverPanics(t *testing.T) {
	inputs := []string{":", ",,,", "오답 패턴", "오답 패턴:", "**", "\n\n오답패턴:a", string([]byte{0xff, 0xfe})}
	for _, in := range inputs {
		_ = Extract(in)
	}
}
