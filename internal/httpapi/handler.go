// Package httpapi exposes question generation and resilience state over
// HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/resilience"
)

// MaxCount caps the questions one request may ask for.
const MaxCount = 50

// QuestionGenerator is satisfied by *examgen.Generator.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topicID, topicName string, count int, onProgress examgen.ProgressFunc) ([]examgen.Question, error)
}

// GenerateRequest is the body of POST /api/topics/{topicID}/questions.
type GenerateRequest struct {
	TopicName string `json:"topicName"`
	Count     int    `json:"count"`
}

// GenerateResponse carries the generated questions for one topic.
type GenerateResponse struct {
	TopicID   string             `json:"topicId"`
	Questions []examgen.Question `json:"questions"`

	// Degraded is set when at least one question did not come from the
	// model.
	Degraded bool `json:"degraded"`

	// ConfigError carries the generator's configuration error, if any.
	ConfigError string `json:"configError,omitempty"`
}

// HealthResponse reports breaker and ledger state.
type HealthResponse struct {
	Status  string       `json:"status"`
	Breaker BreakerState `json:"breaker"`
	Ledger  LedgerState  `json:"ledger"`
}

// BreakerState is the breaker decision at the time of the request.
type BreakerState struct {
	Allow          bool   `json:"allow"`
	Reason         string `json:"reason"`
	PreferFallback bool   `json:"preferFallback"`
}

// LedgerState mirrors the failure ledger counters.
type LedgerState struct {
	GenericFailures   int        `json:"genericFailures"`
	TransportFailures int        `json:"transportFailures"`
	RecentIssueAt     *time.Time `json:"recentIssueAt,omitempty"`
}

// TopicResponse describes one fallback bank topic.
type TopicResponse struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Questions int    `json:"questions"`
}

// Handler serves the API routes.
type Handler struct {
	generator QuestionGenerator
	ledger    *resilience.Ledger
	breaker   *resilience.Breaker
	bank      examgen.Bank
	logger    *slog.Logger
}

// NewHandler creates a Handler. bank may be nil, in which case the topic
// listing is empty. logger may be nil.
func NewHandler(generator QuestionGenerator, ledger *resilience.Ledger, breaker *resilience.Breaker, bank examgen.Bank, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{generator: generator, ledger: ledger, breaker: breaker, bank: bank, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/topics/{topicID}/questions", h.GenerateQuestions).Methods(http.MethodPost)
	api.HandleFunc("/topics", h.ListTopics).Methods(http.MethodGet)
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

func (h *Handler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	topicID := mux.Vars(r)["topicID"]

	req := GenerateRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
	}
	if req.Count < 1 || req.Count > MaxCount {
		writeError(w, http.StatusBadRequest, "count must be between 1 and 50")
		return
	}

	h.logger.Info("generating questions", "topic", topicID, "count", req.Count)
	qs, err := h.generator.GenerateQuestions(r.Context(), topicID, req.TopicName, req.Count, nil)

	resp := GenerateResponse{TopicID: topicID, Questions: qs}
	var cerr *examgen.ConfigError
	switch {
	case errors.As(err, &cerr):
		resp.ConfigError = cerr.Error()
	case err != nil:
		h.logger.Error("question generation failed", "topic", topicID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, q := range qs {
		if q.Source != examgen.SourceLLM {
			resp.Degraded = true
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	out := []TopicResponse{}
	if h.bank != nil {
		for _, t := range h.bank.Topics() {
			out = append(out, TopicResponse{Key: t.Key, Name: t.Name, Questions: t.Count})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	d := h.breaker.Evaluate()
	st := h.ledger.State()

	resp := HealthResponse{
		Status: "ok",
		Breaker: BreakerState{
			Allow:          d.Allow,
			Reason:         string(d.Reason),
			PreferFallback: d.PreferFallback,
		},
		Ledger: LedgerState{
			GenericFailures:   h.ledger.Count(resilience.KindGeneric),
			TransportFailures: h.ledger.Count(resilience.KindTransport),
		},
	}
	if !d.Allow {
		resp.Status = "degraded"
	}
	if !st.RecentIssueAt.IsZero() {
		at := st.RecentIssueAt
		resp.Ledger.RecentIssueAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
