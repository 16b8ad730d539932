package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/resilience"
)

type stubGenerator struct {
	topicID   string
	topicName string
	count     int
	source    examgen.Source
	err       error
}

func (s *stubGenerator) GenerateQuestions(_ context.Context, topicID, topicName string, count int, _ examgen.ProgressFunc) ([]examgen.Question, error) {
	s.topicID, s.topicName, s.count = topicID, topicName, count
	qs := make([]examgen.Question, count)
	for i := range qs {
		qs[i] = examgen.Question{ID: "q", Stem: "¿?", CorrectAnswer: examgen.LetterA, Source: s.source, TopicID: topicID}
	}
	return qs, s.err
}

func newTestServer(t *testing.T, gen QuestionGenerator, ledger *resilience.Ledger) *httptest.Server {
	t.Helper()
	if ledger == nil {
		ledger = resilience.NewLedger()
	}
	bank, err := examgen.LoadEmbeddedBank()
	require.NoError(t, err)

	breaker := resilience.NewBreaker(ledger, resilience.DefaultBreakerConfig(), nil)
	srv := httptest.NewServer(NewRouter(NewHandler(gen, ledger, breaker, bank, nil)))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGenerateQuestions(t *testing.T) {
	gen := &stubGenerator{source: examgen.SourceLLM}
	srv := newTestServer(t, gen, nil)

	resp := post(t, srv.URL+"/v1/topics/derechos-humanos-dih/questions", `{"topicName": "Derechos Humanos", "count": 3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "derechos-humanos-dih", body.TopicID)
	assert.Len(t, body.Questions, 3)
	assert.False(t, body.Degraded)
	assert.Empty(t, body.ConfigError)

	assert.Equal(t, "derechos-humanos-dih", gen.topicID)
	assert.Equal(t, "Derechos Humanos", gen.topicName)
	assert.Equal(t, 3, gen.count)
}

func TestGenerateQuestions_DefaultsToOne(t *testing.T) {
	gen := &stubGenerator{source: examgen.SourceLLM}
	srv := newTestServer(t, gen, nil)

	resp := post(t, srv.URL+"/v1/topics/x/questions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, gen.count)
}

func TestGenerateQuestions_BadRequests(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{}, nil)

	for name, body := range map[string]string{
		"malformed": `{"count": `,
		"zero":      `{"count": 0}`,
		"too many":  `{"count": 51}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := post(t, srv.URL+"/v1/topics/x/questions", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGenerateQuestions_ConfigErrorStillServes(t *testing.T) {
	gen := &stubGenerator{source: examgen.SourceTemplate, err: &examgen.ConfigError{Err: errors.New("no key")}}
	srv := newTestServer(t, gen, nil)

	resp := post(t, srv.URL+"/v1/topics/x/questions", `{"count": 2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Questions, 2)
	assert.True(t, body.Degraded)
	assert.Contains(t, body.ConfigError, "no key")
}

func TestGenerateQuestions_WithGenerator(t *testing.T) {
	ledger := resilience.NewLedger()
	for i := 0; i < 5; i++ {
		ledger.RecordFailure(resilience.KindGeneric)
	}
	mock := llm.NewMockProvider()
	gen := examgen.New(examgen.Deps{Provider: mock, Ledger: ledger}, examgen.DefaultConfig())
	srv := newTestServer(t, gen, ledger)

	resp := post(t, srv.URL+"/v1/topics/derechos-humanos-dih/questions", `{"count": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Questions, 1)
	assert.Equal(t, examgen.SourceBank, body.Questions[0].Source)
	assert.True(t, body.Degraded)
	assert.Zero(t, mock.CallCount())
}

func TestHealth(t *testing.T) {
	ledger := resilience.NewLedger()
	srv := newTestServer(t, &stubGenerator{}, ledger)

	get := func() HealthResponse {
		resp, err := http.Get(srv.URL + "/v1/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	h := get()
	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.Breaker.Allow)
	assert.Equal(t, "CLOSED", h.Breaker.Reason)
	assert.Nil(t, h.Ledger.RecentIssueAt)

	for i := 0; i < 3; i++ {
		ledger.RecordFailure(resilience.KindTransport)
	}
	h = get()
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "OPEN_TRANSPORT", h.Breaker.Reason)
	assert.Equal(t, 3, h.Ledger.TransportFailures)
	assert.NotNil(t, h.Ledger.RecentIssueAt)
}

func TestListTopics(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{}, nil)

	resp, err := http.Get(srv.URL + "/v1/topics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var topics []TopicResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&topics))
	require.NotEmpty(t, topics)

	keys := make([]string, 0, len(topics))
	for _, tp := range topics {
		keys = append(keys, tp.Key)
	}
	assert.Contains(t, keys, "derechos-humanos-dih")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{}, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/topics/x/questions", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
