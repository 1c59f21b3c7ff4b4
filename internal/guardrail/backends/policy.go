package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zero-day-ai/warden/internal/guardrail"
	"github.com/zero-day-ai/warden/internal/types"
)

// Correlation store bounds. Long-lived gateway processes must not grow the
// store without limit when turns are abandoned mid-flight.
const (
	defaultMaxSessions = 1024
	defaultSessionTTL  = 10 * time.Minute
)

// PolicyConfig configures the policy gateway backend.
type PolicyConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	MaxSessions int           `mapstructure:"max_sessions"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
}

// PolicyGatewayEvaluator consults a separate policy service. The service
// correlates its own pre-model and post-model calls for one turn, so the
// evaluator issues a request ID at before_request, carries it through the
// turn keyed by session, and retires it when the turn's after_response call
// completes.
type PolicyGatewayEvaluator struct {
	name         string
	config       PolicyConfig
	client       *http.Client
	correlations *correlationStore
}

// NewPolicyGatewayEvaluator creates a policy gateway evaluator. The endpoint
// is required.
func NewPolicyGatewayEvaluator(name string, config PolicyConfig) (*PolicyGatewayEvaluator, error) {
	if config.Endpoint == "" {
		return nil, types.NewError(types.GUARDRAIL_CONFIG_INVALID, "policy backend requires an endpoint")
	}
	if name == "" {
		name = "policy"
	}

	maxSessions := config.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	ttl := config.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	return &PolicyGatewayEvaluator{
		name:         name,
		config:       config,
		client:       &http.Client{},
		correlations: newCorrelationStore(maxSessions, ttl),
	}, nil
}

// Name returns the evaluator name.
func (p *PolicyGatewayEvaluator) Name() string {
	return p.name
}

// policyRequest is the wire request sent to the policy gateway.
type policyRequest struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`
	Stage     string `json:"stage"`
	Content   string `json:"content"`
	Context   string `json:"context,omitempty"`
}

// policyResponse is the wire response from the policy gateway.
type policyResponse struct {
	Allowed bool   `json:"allowed"`
	Policy  string `json:"policy,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluate implements guardrail.Evaluator.
func (p *PolicyGatewayEvaluator) Evaluate(ctx context.Context, stage guardrail.Stage, content, history string, cfg *guardrail.StageConfig) (*guardrail.Evaluation, error) {
	if content == "" {
		return nil, nil
	}

	sessionID := guardrail.SessionIDFromContext(ctx)
	requestID := p.requestIDFor(sessionID, stage)

	body, err := json.Marshal(policyRequest{
		RequestID: requestID.String(),
		SessionID: sessionID.String(),
		Stage:     string(stage),
		Content:   content,
		Context:   history,
	})
	if err != nil {
		return nil, types.WrapError(types.BACKEND_REQUEST_FAILED, "failed to encode policy request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.WrapError(types.BACKEND_REQUEST_FAILED, "failed to build policy request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.WrapRetryableError(types.BACKEND_REQUEST_FAILED, "policy request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewRetryableError(types.BACKEND_REQUEST_FAILED,
			fmt.Sprintf("policy gateway returned status %d", resp.StatusCode))
	}

	var result policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.WrapError(types.BACKEND_RESPONSE_INVALID, "failed to decode policy response", err)
	}

	// The turn's final call retires the correlation entry.
	if stage == guardrail.StageAfterResponse && !sessionID.IsZero() {
		p.correlations.remove(sessionID.String())
	}

	if result.Allowed {
		return &guardrail.Evaluation{Safe: true}, nil
	}

	eval := &guardrail.Evaluation{
		Safe:   false,
		Reason: result.Reason,
	}
	if result.Policy != "" {
		eval.Details = map[string]any{"categories": []string{result.Policy}}
	}
	return eval, nil
}

// requestIDFor returns the request ID correlating this turn's calls. The
// before_request stage mints a fresh ID; later stages reuse the stored one.
// Without a session identifier every call gets an uncorrelated fresh ID.
func (p *PolicyGatewayEvaluator) requestIDFor(sessionID types.ID, stage guardrail.Stage) types.ID {
	if sessionID.IsZero() {
		return types.NewID()
	}

	if stage == guardrail.StageBeforeRequest {
		id := types.NewID()
		p.correlations.put(sessionID.String(), id)
		return id
	}

	if id, ok := p.correlations.get(sessionID.String()); ok {
		return id
	}
	id := types.NewID()
	p.correlations.put(sessionID.String(), id)
	return id
}

// correlationEntry pairs a request ID with its creation time for TTL expiry.
type correlationEntry struct {
	requestID types.ID
	createdAt time.Time
}

// correlationStore is a bounded, mutex-guarded map from session ID to the
// turn's request ID. Entries expire after the TTL and the oldest entry is
// evicted when the store is full, so abandoned turns cannot leak.
type correlationStore struct {
	mu      sync.Mutex
	entries map[string]correlationEntry
	max     int
	ttl     time.Duration
}

func newCorrelationStore(max int, ttl time.Duration) *correlationStore {
	return &correlationStore{
		entries: make(map[string]correlationEntry),
		max:     max,
		ttl:     ttl,
	}
}

func (s *correlationStore) put(sessionID string, requestID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	if len(s.entries) >= s.max {
		s.evictOldestLocked()
	}
	s.entries[sessionID] = correlationEntry{
		requestID: requestID,
		createdAt: time.Now(),
	}
}

func (s *correlationStore) get(sessionID string) (types.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return "", false
	}
	if time.Since(entry.createdAt) > s.ttl {
		delete(s.entries, sessionID)
		return "", false
	}
	return entry.requestID, true
}

func (s *correlationStore) remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

func (s *correlationStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *correlationStore) evictExpiredLocked() {
	now := time.Now()
	for id, entry := range s.entries {
		if now.Sub(entry.createdAt) > s.ttl {
			delete(s.entries, id)
		}
	}
}

func (s *correlationStore) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, entry := range s.entries {
		if oldestID == "" || entry.createdAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.createdAt
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}
