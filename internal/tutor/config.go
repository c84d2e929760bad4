package tutor

// Config holds tutoring turn settings.
type Config struct {
	MaxTokens   int
	Temperature float64
	// HistoryWindow is how many recent messages a continuation carries.
	HistoryWindow int
	// StartMessages mark a first turn regardless of conversation id.
	StartMessages []string
}

// DefaultConfig returns sensible defaults for tutoring turns.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     1024,
		Temperature:   0.4,
		HistoryWindow: 5,
		StartMessages: []string{"시작", "start"},
	}
}
