package prompt

import (
	"fmt"
	"strings"

	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/patterns"
)

// NotAvailable marks concept fields with no value.
const NotAvailable = "N/A"

// ConceptContext is the concept block of a report prompt: the primary
// concept's fields plus every linked concept for reference.
type ConceptContext struct {
	TbCon          string                   `json:"tb_con"`
	TbSubCon       string                   `json:"tb_sub_con"`
	ConType        string                   `json:"con_type"`
	ConName        string                   `json:"con_name"`
	ConDescription string                   `json:"con_description"`
	AllConcepts    []models.TextbookConcept `json:"all_concepts"`
}

const reportPersona = `당신은 학생의 수학 풀이 대화를 분석해 오답 리포트를 작성하는 학습 분석 전문가입니다.
아래 문제 정보, 개념 정보, 튜터와 학생의 대화를 바탕으로 학생이 어디서 왜 틀렸는지 분석하세요.`

// Report builds the report-generation prompt.
func Report(p *models.Problem, concept ConceptContext, transcript []models.MessageSummary) string {
	var b strings.Builder
	b.WriteString(reportPersona)

	b.WriteString("\n\n## 문제 정보\n")
	writeField(&b, "문제 이름", p.Name)
	writeField(&b, "대단원", p.MainChapter)
	writeField(&b, "소단원", p.SubChapter)
	writeField(&b, "문제 유형", p.Type)
	writeField(&b, "난이도", p.Level)
	writeField(&b, "문제", p.Text)
	writeField(&b, "정답", p.Answer)
	writeField(&b, "모범 풀이", p.Solution)

	b.WriteString("\n## 핵심 개념\n")
	fmt.Fprintf(&b, "- 교과 개념: %s\n", concept.TbCon)
	fmt.Fprintf(&b, "- 세부 개념: %s\n", concept.TbSubCon)
	fmt.Fprintf(&b, "- 개념 유형: %s\n", concept.ConType)
	fmt.Fprintf(&b, "- 개념 이름: %s\n", concept.ConName)
	fmt.Fprintf(&b, "- 개념 설명: %s\n", concept.ConDescription)
	if len(concept.AllConcepts) > 1 {
		b.WriteString("- 함께 연결된 개념:\n")
		for _, con := range concept.AllConcepts[1:] {
			fmt.Fprintf(&b, "  - %s\n", joinNonEmpty(" / ", con.ConType, con.Name, con.SubName))
		}
	}

	b.WriteString("\n## 풀이 대화\n")
	if len(transcript) == 0 {
		b.WriteString("(대화 기록 없음)\n")
	}
	for _, m := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", speaker(m.Role), m.Message)
	}

	b.WriteString("\n## 작성 형식\n")
	b.WriteString("다음 마크다운 구조를 그대로 지켜 한국어로 작성하세요.\n\n")
	b.WriteString("### 1. 풀이 과정 요약\n")
	b.WriteString("### 2. 오답 원인 분석\n")
	b.WriteString("이 섹션 안에 반드시 아래 형식의 한 줄을 포함하세요.\n")
	b.WriteString("**오답 패턴**: <아래 목록에서 해당하는 항목을 쉼표로 구분>\n")
	b.WriteString("오답 패턴 목록: ")
	b.WriteString(strings.Join(patterns.RawLabels, ", "))
	b.WriteString("\n")
	b.WriteString("### 3. 보완할 개념\n")
	b.WriteString("### 4. 맞춤 학습 제안\n")
	return b.String()
}
