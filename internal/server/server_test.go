package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasida/tutor/internal/dialogue"
	"github.com/dasida/tutor/internal/llm"
	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/models"
	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/store"
	"github.com/dasida/tutor/internal/turnlock"
	"github.com/dasida/tutor/internal/tutor"
)

type testEnv struct {
	store *store.Store
	mock  *llm.MockProvider
	srv   *Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	st, err := store.Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Catalog().Upsert(context.Background(), store.Seed{
		Problems: []models.Problem{
			{ID: 1, Name: "일차방정식", Page: 12, NumInPage: "3", MainChapter: "방정식", SubChapter: "일차방정식", ConType: "방정식", Text: "2x + 1 = 11", Answer: "x = 5"},
			{ID: 2, Name: "일차방정식 2", Page: 12, NumInPage: "4", MainChapter: "방정식", Text: "3x = 9", Answer: "x = 3"},
		},
		Concepts:     []models.TextbookConcept{{ID: 5, ConType: "방정식", Name: "등식의 성질"}},
		Links:        []models.ProblemConcept{{ProblemID: 1, ConceptID: 5}},
		Similarities: []models.ProblemSimilarity{{ProblemID: 1, SimilarID: 2, Rank: 1}},
	}))

	mock := llm.NewMockProvider()
	codec := dialogue.MustTagCodec()
	ctrl := tutor.NewController(st.Catalog(), st.Transcripts(), mock, codec, tutor.DefaultConfig(), nil)
	syn := report.NewSynthesizer(st.Transcripts(), st.Catalog(), mock, nil, report.DefaultConfig(), nil)

	if opts.Mode == "" {
		opts.Mode = gin.TestMode
	}
	srv := New(Deps{
		Store:    st,
		Tutor:    ctrl,
		Reports:  syn,
		Provider: "mock",
		Model:    "mock",
		Log:      logger.Nop(),
	}, opts)
	return &testEnv{store: st, mock: mock, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{})
	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestStepByStepFlow(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mock.AddResponse(llm.MockResponse{Text: `양변에서 1을 빼면? <STATE>{"current_step":1,"attempts":{}}</STATE>`})

	// First turn: numbers may arrive as JSON numbers.
	w := env.do(t, http.MethodPost, "/ai/step-by-step-solution", map[string]any{
		"user_message":   "시작",
		"page_number":    12,
		"problem_number": 3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[stepResponse](t, w)
	assert.Equal(t, "양변에서 1을 빼면?", first.Solution)
	assert.Equal(t, 1, first.CurrentStep)
	assert.Equal(t, "일차방정식", first.ProblemInfo.Name)

	// Client creates the conversation and stores the exchange.
	w = env.do(t, http.MethodPost, "/conversation/create", map[string]any{"user_id": 9, "p_id": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	convID := decode[map[string]any](t, w)["conversation_id"].(string)

	for _, m := range []map[string]any{
		{"conversation_id": convID, "sender_role": "user", "message": "3"},
		{"conversation_id": convID, "sender_role": "dasida", "message": `<STATE>{"current_step":2,"attempts":{"1":1}}</STATE>Good, try step 2`},
	} {
		w = env.do(t, http.MethodPost, "/chat/save", m)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	env.mock.AddResponse(llm.MockResponse{Text: `<STATE>{"current_step":2,"attempts":{"1":1}}</STATE>Good, try step 2`})
	w = env.do(t, http.MethodPost, "/ai/step-by-step-solution", map[string]any{
		"conversation_id": convID,
		"user_message":    "5",
		"current_step":    1,
		"attempts":        map[string]int{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	next := decode[stepResponse](t, w)
	assert.Equal(t, convID, next.ConversationID)
	assert.Equal(t, 2, next.CurrentStep)
	assert.Equal(t, map[string]int{"1": 1}, next.Attempts)
	assert.Equal(t, "Good, try step 2", next.Solution)
	assert.Contains(t, env.mock.LastPrompt(), "학생: 3")
}

func TestStepByStepErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"missing page", map[string]any{"user_message": "시작", "problem_number": "3"}, http.StatusBadRequest},
		{"bad page", map[string]any{"page_number": "twelve", "problem_number": "3"}, http.StatusBadRequest},
		{"unknown problem", map[string]any{"page_number": "99", "problem_number": "1"}, http.StatusNotFound},
		{"unknown conversation", map[string]any{"conversation_id": "nope", "user_message": "5"}, http.StatusNotFound},
		{"generation failure", map[string]any{"page_number": 12, "problem_number": "3"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/ai/step-by-step-solution", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			errBody := decode[ErrorEnvelope](t, w)
			assert.NotEmpty(t, errBody.Error.Message)
			assert.NotEmpty(t, errBody.Error.Code)
		})
	}
}

func TestStepByStepBusyConversation(t *testing.T) {
	env := newTestEnv(t, Options{})
	locker := turnlock.NewLocalWait(20 * time.Millisecond)
	env.srv.deps.Locker = locker

	w := env.do(t, http.MethodPost, "/conversation/create", map[string]any{"user_id": 9, "p_id": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	convID := decode[map[string]any](t, w)["conversation_id"].(string)

	release, err := locker.Acquire(context.Background(), convID)
	require.NoError(t, err)
	defer release()

	w = env.do(t, http.MethodPost, "/ai/step-by-step-solution", map[string]any{
		"conversation_id": convID,
		"user_message":    "5",
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "turn_in_progress", decode[ErrorEnvelope](t, w).Error.Code)
	assert.Zero(t, env.mock.CallCount())
}

func TestConversationEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(t, http.MethodPost, "/conversation/create", map[string]any{"user_id": 0, "p_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/conversation/create", map[string]any{"user_id": 1, "p_id": 404})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Saving without a conversation id opens one.
	w = env.do(t, http.MethodPost, "/chat/save", map[string]any{"user_id": 3, "p_id": 1, "sender_role": "user", "message": "시작"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	convID := decode[map[string]any](t, w)["conversation_id"].(string)

	w = env.do(t, http.MethodPost, "/chat/save", map[string]any{"conversation_id": convID, "sender_role": "robot", "message": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/conversation/"+convID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = env.do(t, http.MethodGet, "/conversation/"+convID+"/full-chat-log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logBody := decode[struct {
		FullChatLog []models.MessageSummary `json:"full_chat_log"`
	}](t, w)
	require.Len(t, logBody.FullChatLog, 1)
	assert.Equal(t, "시작", logBody.FullChatLog[0].Message)

	w = env.do(t, http.MethodGet, "/conversation/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/conversation/"+convID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode[map[string]any](t, w)["status"])
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	conv, err := env.store.Transcripts().CreateConversation(ctx, 4, 1)
	require.NoError(t, err)
	_, err = env.store.Transcripts().Append(ctx, conv.ID, models.RoleUser, "x = 6", models.KindText)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/reports/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.mock.AddResponse(llm.MockResponse{Text: "### 분석\n**오답 패턴**: 계산 실수, 성급한 판단\n"})
	w = env.do(t, http.MethodPost, "/incorrect-answer-report/"+conv.ID+"?save=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	synth := decode[map[string]any](t, w)
	assert.Equal(t, []any{"계산 실수", "절차 수행 오류"}, synth["error_patterns"])
	assert.NotNil(t, synth["report_id"])

	w = env.do(t, http.MethodGet, "/reports/"+conv.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	latest := decode[map[string]any](t, w)
	assert.Equal(t, "completed", latest["status"])
	assert.Equal(t, "ko", latest["language"])

	w = env.do(t, http.MethodPost, "/reports/save", map[string]any{"conversation_id": conv.ID, "p_id": 1, "full_report_content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/reports/save", map[string]any{
		"conversation_id":     conv.ID,
		"user_id":             4,
		"p_id":                1,
		"learning_stats":      map[string]any{"total_attempts": 3},
		"full_report_content": "**오답 패턴**: 단위 실수",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/user/4/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Conversations []conversationOverview `json:"conversations"`
	}](t, w)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "일차방정식", list.Conversations[0].ProblemName)
	assert.Equal(t, 1, list.Conversations[0].MessageCount)
	assert.True(t, list.Conversations[0].HasReport)
	assert.Equal(t, []string{"표현 실수"}, list.Conversations[0].ErrorPatterns)

	w = env.do(t, http.MethodPost, "/incorrect-answer-report/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/problems/search?page=12&number=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["p_id"])

	w = env.do(t, http.MethodGet, "/problems/search?page=12", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/problems/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[map[string]any](t, w)
	assert.Equal(t, "일차방정식", detail["p_name"])
	assert.Len(t, detail["concepts"], 1)

	w = env.do(t, http.MethodGet, "/problems?main_chapt="+url.QueryEscape("방정식"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["count"])

	w = env.do(t, http.MethodGet, "/similar-problems/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = env.do(t, http.MethodGet, "/similar-problems/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	env := newTestEnv(t, Options{AuthKey: &key.PublicKey, AuthIssuer: "dasida-auth"})

	sign := func(issuer string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			Subject:   "9",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health stays public")

	w = env.do(t, http.MethodGet, "/problems/1", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/problems/1", nil, "Authorization", "Bearer "+sign("dasida-auth", time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/problems/1", nil, "Authorization", "Bearer "+sign("someone-else", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/problems/1", nil, "Authorization", "Bearer "+sign("dasida-auth", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLooseString(t *testing.T) {
	var v struct {
		A looseString `json:"a"`
		B looseString `json:"b"`
		C looseString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": " 3 ", "c": null}`), &v))
	assert.Equal(t, looseString("12"), v.A)
	assert.Equal(t, looseString("3"), v.B)
	assert.Equal(t, looseString(""), v.C)
	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &v))
}
