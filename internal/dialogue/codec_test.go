package dialogue

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dasida/tutor/internal/apperr"
)

func callerState() State {
	return State{Step: 3, Attempts: map[int]int{2: 1}}
}

func TestDecode_AbsentIsIdentity(t *testing.T) {
	codec := MustTagCodec()
	inputs := []string{"", "  좋아요! 다음 단계로 가요.  ", "no tag here", "<STATE"}
	for _, raw := range inputs {
		d := codec.Decode(raw, callerState())
		if d.VisibleText != raw {
			t.Errorf("visible text changed: %q -> %q", raw, d.VisibleText)
		}
		if !reflect.DeepEqual(d.State, callerState()) {
			t.Errorf("state changed for %q: %+v", raw, d.State)
		}
		if d.Outcome != OutcomeAbsent {
			t.Errorf("outcome = %s, want absent", d.Outcome)
		}
		if !errors.Is(d.Tolerated, apperr.ErrDecodeTolerated) {
			t.Errorf("expected tolerated signal, got %v", d.Tolerated)
		}
	}
}

func TestDecode_Applied(t *testing.T) {
	codec := MustTagCodec()
	raw := `<STATE>{"current_step":2,"attempts":{"1":1}}</STATE>Good, try step 2`
	d := codec.Decode(raw, State{Step: 1, Attempts: map[int]int{}})

	if d.VisibleText != "Good, try step 2" {
		t.Fatalf("visible text = %q", d.VisibleText)
	}
	if d.State.Step != 2 {
		t.Fatalf("step = %d, want 2", d.State.Step)
	}
	if !reflect.DeepEqual(d.State.Attempts, map[int]int{1: 1}) {
		t.Fatalf("attempts = %v", d.State.Attempts)
	}
	if d.Outcome != OutcomeApplied || d.Tolerated != nil {
		t.Fatalf("outcome = %s, tolerated = %v", d.Outcome, d.Tolerated)
	}
}

func TestDecode_PartialFallsBackPerField(t *testing.T) {
	codec := MustTagCodec()
	tests := []struct {
		name string
		raw  string
		want State
	}{
		{"step only", `본문<STATE>{"current_step":4}</STATE>`, State{Step: 4, Attempts: map[int]int{2: 1}}},
		{"attempts only", `<STATE>{"attempts":{"3":2}}</STATE>본문`, State{Step: 3, Attempts: map[int]int{3: 2}}},
		{"empty object", `<STATE>{}</STATE>본문`, callerState()},
		{"extra fields ignored", `<STATE>{"current_step":5,"mood":"good"}</STATE>본문`, State{Step: 5, Attempts: map[int]int{2: 1}}},
		{"integral float", `<STATE>{"current_step":2.0}</STATE>본문`, State{Step: 2, Attempts: map[int]int{2: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := codec.Decode(tt.raw, callerState())
			if !reflect.DeepEqual(d.State, tt.want) {
				t.Errorf("state = %+v, want %+v", d.State, tt.want)
			}
			if d.VisibleText != "본문" {
				t.Errorf("visible text = %q", d.VisibleText)
			}
		})
	}
}

func TestDecode_MalformedPassesThroughAndStrips(t *testing.T) {
	codec := MustTagCodec()
	tests := []struct {
		name    string
		raw     string
		visible string
	}{
		{"not json", "앞<STATE>step two</STATE>뒤", "앞뒤"},
		{"empty", "<STATE></STATE>안녕", "안녕"},
		{"array", "<STATE>[1,2]</STATE>안녕", "안녕"},
		{"wrong step type", `<STATE>{"current_step":"2"}</STATE>안녕`, "안녕"},
		{"non numeric attempts key", `<STATE>{"attempts":{"first":1}}</STATE>안녕`, "안녕"},
		{"fractional step", `<STATE>{"current_step":1.5}</STATE>안녕`, "안녕"},
		{"zero step", `<STATE>{"current_step":0}</STATE>안녕`, "안녕"},
		{"huge step", `<STATE>{"current_step":1e20}</STATE>안녕`, "안녕"},
		{"step past int32", `<STATE>{"current_step":2147483648}</STATE>안녕`, "안녕"},
		{"huge attempts", `<STATE>{"attempts":{"1":1e300}}</STATE>안녕`, "안녕"},
		{"negative attempts", `<STATE>{"attempts":{"1":-1}}</STATE>안녕`, "안녕"},
		{"unterminated", `안녕 <STATE>{"current_step":2`, "안녕"},
		{"stray close", `안녕 </STATE>하세요`, "안녕 하세요"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := codec.Decode(tt.raw, callerState())
			if d.VisibleText != tt.visible {
				t.Errorf("visible text = %q, want %q", d.VisibleText, tt.visible)
			}
			if !reflect.DeepEqual(d.State, callerState()) {
				t.Errorf("state changed: %+v", d.State)
			}
			if d.Outcome != OutcomeMalformed {
				t.Errorf("outcome = %s, want malformed", d.Outcome)
			}
			if !errors.Is(d.Tolerated, apperr.ErrDecodeTolerated) {
				t.Errorf("expected tolerated signal, got %v", d.Tolerated)
			}
		})
	}
}

func TestDecode_FirstTagWinsAndAllAreStripped(t *testing.T) {
	codec := MustTagCodec()
	raw := "<STATE>{\"current_step\":2}</STATE>하나\n<STATE>{\"current_step\":9}</STATE>둘"
	d := codec.Decode(raw, callerState())
	if d.State.Step != 2 {
		t.Fatalf("step = %d, want 2 from the first tag", d.State.Step)
	}
	if d.VisibleText != "하나\n둘" {
		t.Fatalf("visible text = %q", d.VisibleText)
	}
}

func TestDecode_MultilinePayload(t *testing.T) {
	codec := MustTagCodec()
	raw := "설명입니다.\n<STATE>\n{\n  \"current_step\": 3,\n  \"attempts\": {\"2\": 2}\n}\n</STATE>"
	d := codec.Decode(raw, State{Step: 2, Attempts: map[int]int{2: 1}})
	if d.Outcome != OutcomeApplied || d.State.Step != 3 || d.State.Attempts[2] != 2 {
		t.Fatalf("unexpected decode: %+v", d)
	}
	if d.VisibleText != "설명입니다." {
		t.Fatalf("visible text = %q", d.VisibleText)
	}
}

func TestDecode_NeverLeaksTags(t *testing.T) {
	codec := MustTagCodec()
	inputs := []string{
		"<STATE>{}</STATE>",
		"a<STATE>b</STATE>c<STATE>d",
		"<STA<STATE>x</STATE>TE>tail",
		"<ST</STATE>ATE>tail",
		"<</STATE>/STATE>",
		"</STATE><STATE>",
	}
	for _, raw := range inputs {
		d := codec.Decode(raw, callerState())
		if strings.Contains(d.VisibleText, openTag) || strings.Contains(d.VisibleText, closeTag) {
			t.Errorf("Decode(%q) leaked a tag: %q", raw, d.VisibleText)
		}
	}
}

func TestDecode_DoesNotAliasCallerAttempts(t *testing.T) {
	codec := MustTagCodec()
	in := callerState()
	d := codec.Decode("plain", in)
	d.State.Attempts[2] = 99
	if in.Attempts[2] != 1 {
		t.Fatal("decoded state shares the caller's attempts map")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	codec := MustTagCodec()
	s := State{Step: 4, Attempts: map[int]int{1: 2, 3: 1}}
	tag := codec.Encode(s)
	if tag != `<STATE>{"current_step":4,"attempts":{"1":2,"3":1}}</STATE>` {
		t.Fatalf("Encode = %s", tag)
	}
	d := codec.Decode(tag+"다음", Initial())
	if !reflect.DeepEqual(d.State, s) {
		t.Fatalf("round trip state = %+v", d.State)
	}
}

func TestInstructionMentionsTagFormat(t *testing.T) {
	ins := MustTagCodec().Instruction()
	for _, want := range []string{openTag, closeTag, "current_step", "attempts"} {
		if !strings.Contains(ins, want) {
			t.Errorf("instruction missing %q", want)
		}
	}
}

func TestAttemptsHelpers(t *testing.T) {
	got := AttemptsFromWire(map[string]int{"1": 2, " 3 ": 1, "x": 5})
	if !reflect.DeepEqual(got, map[int]int{1: 2, 3: 1}) {
		t.Fatalf("AttemptsFromWire = %v", got)
	}
	if w := AttemptsToWire(got); w["1"] != 2 || w["3"] != 1 {
		t.Fatalf("AttemptsToWire = %v", w)
	}
	if s := (State{Step: 1, Attempts: map[int]int{10: 1, 2: 3}}).AttemptsString(); s != `{"2": 3, "10": 1}` {
		t.Fatalf("AttemptsString = %s", s)
	}
	if s := Initial().AttemptsString(); s != "{}" {
		t.Fatalf("AttemptsString of initial = %s", s)
	}
}
