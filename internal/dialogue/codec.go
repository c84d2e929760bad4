package dialogue

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dasida/tutor/internal/apperr"
)

const (
	openTag  = "<STATE>"
	closeTag = "</STATE>"
)

// Codec embeds the state-tag instruction into prompts and decodes model
// output. The turn controller depends on this interface only.
type Codec interface {
	Instruction() string
	Decode(raw string, in State) Decoded
}

// Outcome classifies what Decode found.
type Outcome int

const (
	// OutcomeAbsent means no tag markers appeared at all.
	OutcomeAbsent Outcome = iota
	// OutcomeMalformed means a tag appeared but could not be used.
	OutcomeMalformed
	// OutcomeApplied means the tag parsed and updated the state.
	OutcomeApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeApplied:
		return "applied"
	}
	return "unknown"
}

// Decoded is the result of decoding one model response.
type Decoded struct {
	VisibleText string
	State       State
	Outcome     Outcome
	// Tolerated wraps apperr.ErrDecodeTolerated with the reason the state
	// passed through unchanged. Nil when the tag was applied.
	Tolerated error
}

var stateTag = regexp.MustCompile(`(?s)<STATE>(.*?)</STATE>`)

// TagCodec is the <STATE>{json}</STATE> codec.
type TagCodec struct {
	schema *jsonschema.Schema
}

// NewTagCodec compiles the payload schema.
func NewTagCodec() (*TagCodec, error) {
	// The compiler wants plain decoded JSON, not Go literals.
	defBytes, err := json.Marshal(stateSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal state schema: %w", err)
	}
	var def any
	if err := json.Unmarshal(defBytes, &def); err != nil {
		return nil, fmt.Errorf("parse state schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(stateSchemaURL, def); err != nil {
		return nil, fmt.Errorf("add state schema: %w", err)
	}
	sch, err := c.Compile(stateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}
	return &TagCodec{schema: sch}, nil
}

// MustTagCodec is NewTagCodec for package-level wiring; the schema is static.
func MustTagCodec() *TagCodec {
	c, err := NewTagCodec()
	if err != nil {
		panic(err)
	}
	return c
}

const stateSchemaURL = "schema://dialogue-state.json"

// maxCount bounds steps and attempt counts so they always fit an int.
const maxCount = math.MaxInt32

func stateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"current_step": map[string]any{"type": "integer", "minimum": 1, "maximum": maxCount},
			"attempts": map[string]any{
				"type":                 "object",
				"propertyNames":        map[string]any{"pattern": "^[0-9]+$"},
				"additionalProperties": map[string]any{"type": "integer", "minimum": 0, "maximum": maxCount},
			},
		},
	}
}

// Instruction is the prompt fragment asking the model to emit the tag.
func (c *TagCodec) Instruction() string {
	var b strings.Builder
	b.WriteString("## 상태 태그 규칙\n")
	b.WriteString("응답에 아래 형식의 상태 태그를 정확히 한 번 포함하세요. 이 태그는 학생에게 보이지 않습니다.\n")
	b.WriteString(openTag + `{"current_step": <다음에 진행할 단계 번호>, "attempts": {"<단계 번호>": <해당 단계에서 틀린 횟수>}}` + closeTag + "\n")
	b.WriteString("- 학생이 현재 단계를 맞히면 current_step을 1 올리세요.\n")
	b.WriteString("- 틀리면 current_step은 그대로 두고 해당 단계의 attempts 값을 1 늘리세요.\n")
	b.WriteString("- 태그 안에는 JSON 객체만 쓰고, 태그 밖의 본문에서는 태그를 언급하지 마세요.\n")
	return b.String()
}

// Encode renders a state tag for s.
func (c *TagCodec) Encode(s State) string {
	raw, _ := json.Marshal(s)
	return openTag + string(raw) + closeTag
}

// Decode extracts the first state tag. It never fails: a missing or
// unusable tag leaves the caller's state in place. Any tag region is removed
// from the visible text whether or not it parsed.
func (c *TagCodec) Decode(raw string, in State) Decoded {
	m := stateTag.FindStringSubmatch(raw)
	if m == nil {
		if !strings.Contains(raw, openTag) && !strings.Contains(raw, closeTag) {
			return Decoded{
				VisibleText: raw,
				State:       in.Clone(),
				Outcome:     OutcomeAbsent,
				Tolerated:   fmt.Errorf("%w: no state tag", apperr.ErrDecodeTolerated),
			}
		}
		return Decoded{
			VisibleText: stripTags(raw),
			State:       in.Clone(),
			Outcome:     OutcomeMalformed,
			Tolerated:   fmt.Errorf("%w: unterminated state tag", apperr.ErrDecodeTolerated),
		}
	}

	visible := stripTags(raw)
	st, err := c.parse(m[1], in)
	if err != nil {
		return Decoded{
			VisibleText: visible,
			State:       in.Clone(),
			Outcome:     OutcomeMalformed,
			Tolerated:   fmt.Errorf("%w: %v", apperr.ErrDecodeTolerated, err),
		}
	}
	return Decoded{VisibleText: visible, State: st, Outcome: OutcomeApplied}
}

// parse validates the payload and merges present fields over in.
func (c *TagCodec) parse(payload string, in State) (State, error) {
	var doc any
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &doc); err != nil {
		return State{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return State{}, fmt.Errorf("schema validation failed: %w", err)
	}

	obj := doc.(map[string]any)
	out := in.Clone()
	if v, ok := obj["current_step"].(float64); ok {
		n, err := toCount(v, 1)
		if err != nil {
			return State{}, fmt.Errorf("current_step: %w", err)
		}
		out.Step = n
	}
	if v, ok := obj["attempts"].(map[string]any); ok {
		attempts := make(map[int]int, len(v))
		for k, n := range v {
			step, err := strconv.Atoi(k)
			if err != nil {
				return State{}, fmt.Errorf("attempts key %q: %w", k, err)
			}
			f, _ := n.(float64)
			count, err := toCount(f, 0)
			if err != nil {
				return State{}, fmt.Errorf("attempts[%s]: %w", k, err)
			}
			attempts[step] = count
		}
		out.Attempts = attempts
	}
	return out, nil
}

func toCount(v float64, lo int) (int, error) {
	r := math.Round(v)
	if math.IsNaN(r) || r < float64(lo) || r > maxCount {
		return 0, fmt.Errorf("%v out of range [%d, %d]", v, lo, maxCount)
	}
	return int(r), nil
}

// stripTags removes every complete tag region, cuts at an unterminated
// opening marker and drops stray closing markers. Repeats until stable so
// removal cannot splice a new marker together.
func stripTags(raw string) string {
	out := stateTag.ReplaceAllString(raw, "")
	for {
		prev := out
		out = stateTag.ReplaceAllString(out, "")
		out = strings.ReplaceAll(out, closeTag, "")
		if i := strings.Index(out, openTag); i >= 0 {
			out = out[:i]
		}
		if out == prev {
			break
		}
	}
	return strings.TrimSpace(out)
}
