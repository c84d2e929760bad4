package report

import (
	"math"

	"github.com/dasida/tutor/internal/models"
)

// LearningStats summarizes a transcript for the report row.
type LearningStats struct {
	TotalMessages       int     `json:"total_messages"`
	StudentMessages     int     `json:"total_attempts"`
	TutorMessages       int     `json:"tutor_messages"`
	TotalTimeSeconds    int64   `json:"total_time_seconds"`
	AvgSecondsPerAnswer float64 `json:"avg_seconds_per_answer"`
}

// ComputeStats derives counts and timing from an ordered transcript.
// The opening "시작" message is counted like any other student message.
func ComputeStats(msgs []models.ChatMessage) LearningStats {
	var st LearningStats
	st.TotalMessages = len(msgs)
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			st.StudentMessages++
		case models.RoleTutor:
			st.TutorMessages++
		}
	}
	if len(msgs) < 2 {
		return st
	}
	elapsed := msgs[len(msgs)-1].CreatedAt.Sub(msgs[0].CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	st.TotalTimeSeconds = int64(elapsed.Seconds())
	if st.StudentMessages > 0 {
		avg := elapsed.Seconds() / float64(st.StudentMessages)
		st.AvgSecondsPerAnswer = math.Round(avg*10) / 10
	}
	return st
}
