package prompt

import (
	"bytes"
	"encoding/json"

	"github.com/dasida/tutor/internal/models"
)

// NormalizeChatLog decodes a full_chat_log snapshot. Older rows stored a
// single object or a JSON-encoded string instead of an array; those are
// normalized too. Anything undecodable yields an empty log.
func NormalizeChatLog(raw json.RawMessage) []models.MessageSummary {
	return normalizeChatLog(raw, true)
}

func normalizeChatLog(raw json.RawMessage, allowString bool) []models.MessageSummary {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []models.MessageSummary{}
	}

	switch raw[0] {
	case '[':
		var list []models.MessageSummary
		if err := json.Unmarshal(raw, &list); err == nil {
			return list
		}
		// Salvage well-formed elements from a mixed array.
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return []models.MessageSummary{}
		}
		out := make([]models.MessageSummary, 0, len(items))
		for _, it := range items {
			var m models.MessageSummary
			if json.Unmarshal(it, &m) == nil {
				out = append(out, m)
			}
		}
		return out
	case '{':
		var m models.MessageSummary
		if err := json.Unmarshal(raw, &m); err != nil {
			return []models.MessageSummary{}
		}
		return []models.MessageSummary{m}
	case '"':
		var inner string
		if !allowString || json.Unmarshal(raw, &inner) != nil {
			return []models.MessageSummary{}
		}
		return normalizeChatLog(json.RawMessage(inner), false)
	}
	return []models.MessageSummary{}
}

// Window returns the last n messages. n <= 0 returns none.
func Window(msgs []models.MessageSummary, n int) []models.MessageSummary {
	if n <= 0 || len(msgs) == 0 {
		return nil
	}
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// Summaries projects stored messages into snapshot form.
func Summaries(msgs []models.ChatMessage) []models.MessageSummary {
	out := make([]models.MessageSummary, len(msgs))
	for i, m := range msgs {
		out[i] = m.Summary()
	}
	return out
}

func speaker(r models.Role) string {
	switch r {
	case models.RoleUser:
		return "학생"
	case models.RoleSystem:
		return "시스템"
	default:
		return "튜터"
	}
}
