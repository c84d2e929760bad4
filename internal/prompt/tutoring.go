// Package prompt builds the instruction text sent to the generation
// backend. Every function here is pure: same inputs, same text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/dasida/tutor/internal/dialogue"
	"github.com/dasida/tutor/internal/models"
)

// DefaultHistoryWindow is how many recent transcript messages a
// continuation prompt carries.
const DefaultHistoryWindow = 5

const tutorPersona = `당신은 중학생의 수학 문제 풀이를 돕는 AI 튜터 "다시다"입니다.
학생이 스스로 답에 도달하도록 소크라테스식 질문으로 한 단계씩 안내합니다.`

const tutorRules = `## 진행 규칙
1. 풀이를 여러 단계로 나누고, 한 번에 한 단계만 제시하세요.
2. 각 단계는 학생이 직접 계산하거나 답할 수 있는 하나의 질문으로 끝내세요.
3. 정답이나 전체 풀이를 먼저 알려주지 마세요.
4. 학생의 답이 맞으면 짧게 칭찬하고 다음 단계로 넘어가세요.
5. 틀리면 어디서 틀렸는지 힌트를 주고 같은 단계를 다시 시도하게 하세요.
   같은 단계에서 2번 틀리면 더 구체적인 힌트를, 3번 틀리면 그 단계의 풀이를 보여주고 넘어가세요.
6. 마지막 단계를 마치면 전체 풀이를 정리하고 "문제 풀이 완료"라고 알려주세요.
7. 학생 눈높이에 맞는 쉬운 한국어로, 3~5문장 이내로 답하세요.`

// Composer assembles tutoring prompts. StateInstruction comes from the
// dialogue codec so the tag format has one owner.
type Composer struct {
	StateInstruction string
	HistoryWindow    int
}

// NewComposer wires the codec's tag instruction into a composer.
func NewComposer(codec dialogue.Codec) Composer {
	return Composer{StateInstruction: codec.Instruction(), HistoryWindow: DefaultHistoryWindow}
}

// Tutoring builds the base tutoring prompt for a problem and its concepts.
func (c Composer) Tutoring(p *models.Problem, concepts []models.TextbookConcept) string {
	var b strings.Builder
	b.WriteString(tutorPersona)
	b.WriteString("\n\n## 문제 정보\n")
	writeField(&b, "문제 이름", p.Name)
	writeField(&b, "단원", joinNonEmpty(" > ", p.MainChapter, p.SubChapter))
	writeField(&b, "개념 유형", p.ConType)
	writeField(&b, "문제 유형", p.Type)
	writeField(&b, "난이도", p.Level)
	writeField(&b, "문제", p.Text)
	writeField(&b, "정답", p.Answer)
	writeField(&b, "모범 풀이", p.Solution)

	if len(concepts) > 0 {
		b.WriteString("\n## 관련 개념\n")
		for _, con := range concepts {
			fmt.Fprintf(&b, "- %s", joinNonEmpty(" / ", con.ConType, con.Name, con.SubName))
			if con.Description != "" {
				fmt.Fprintf(&b, ": %s", con.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(tutorRules)
	b.WriteString("\n\n")
	b.WriteString(c.StateInstruction)
	return b.String()
}

// FirstTurn appends the fixed first-turn state block.
func (c Composer) FirstTurn(base, conversationID string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n현재 대화 상태:\n")
	fmt.Fprintf(&b, "- conversation_id: %s\n", orNew(conversationID))
	b.WriteString("- current_step: 1\n")
	b.WriteString("- attempts: {}\n")
	b.WriteString("- user_message: \"시작\"\n\n")
	b.WriteString("첫 번째 단계를 시작하세요. 위의 프롬프트 규칙을 따라 첫 번째 단계만 제시하세요.")
	return b.String()
}

// Continuation appends the caller's state, the recent transcript window
// and the student's new message.
func (c Composer) Continuation(base, conversationID string, st dialogue.State, userMessage string, history []models.MessageSummary) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n현재 대화 상태:\n")
	fmt.Fprintf(&b, "- conversation_id: %s\n", orNew(conversationID))
	fmt.Fprintf(&b, "- current_step: %d\n", st.Step)
	fmt.Fprintf(&b, "- attempts: %s\n", st.AttemptsString())
	fmt.Fprintf(&b, "- user_message: %q\n\n", userMessage)

	b.WriteString("대화 히스토리:\n")
	window := Window(history, c.window())
	if len(window) == 0 {
		b.WriteString("(없음)\n")
	}
	for _, m := range window {
		fmt.Fprintf(&b, "%s: %s\n", speaker(m.Role), m.Message)
	}

	fmt.Fprintf(&b, "\n학생의 새로운 응답: %s\n\n", userMessage)
	b.WriteString("위의 프롬프트 규칙에 따라 다음 단계를 진행하거나 피드백을 제공하세요.")
	return b.String()
}

func (c Composer) window() int {
	if c.HistoryWindow <= 0 {
		return DefaultHistoryWindow
	}
	return c.HistoryWindow
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, value)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func orNew(id string) string {
	if id == "" {
		return "(새 대화)"
	}
	return id
}
