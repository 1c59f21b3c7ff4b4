package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/warden/internal/guardrail"
	"github.com/zero-day-ai/warden/internal/types"
)

func policyServer(t *testing.T, response policyResponse, requests *[]policyRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req policyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if requests != nil {
			mu.Lock()
			*requests = append(*requests, req)
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewPolicyGatewayEvaluatorRequiresEndpoint(t *testing.T) {
	_, err := NewPolicyGatewayEvaluator("policy", PolicyConfig{})
	require.Error(t, err)
	assert.Equal(t, types.GUARDRAIL_CONFIG_INVALID, types.CodeOf(err))
}

func TestPolicyGatewayAllowed(t *testing.T) {
	server := policyServer(t, policyResponse{Allowed: true}, nil)

	evaluator, err := NewPolicyGatewayEvaluator("policy", PolicyConfig{Endpoint: server.URL})
	require.NoError(t, err)

	eval, err := evaluator.Evaluate(context.Background(), guardrail.StageBeforeRequest, "content", "", &guardrail.StageConfig{})

	require.NoError(t, err)
	require.NotNil(t, eval)
	assert.True(t, eval.Safe)
}

func TestPolicyGatewayDenied(t *testing.T) {
	server := policyServer(t, policyResponse{
		Allowed: false,
		Policy:  "data-exfiltration",
		Reason:  "matched exfiltration policy",
	}, nil)

	evaluator, err := NewPolicyGatewayEvaluator("policy", PolicyConfig{Endpoint: server.URL})
	require.NoError(t, err)

	eval, err := evaluator.Evaluate(context.Background(), guardrail.StageAfterResponse, "content", "", &guardrail.StageConfig{})

	require.NoError(t, err)
	require.NotNil(t, eval)
	assert.False(t, eval.Safe)
	assert.Equal(t, "matched exfiltration policy", eval.Reason)
	assert.Equal(t, []string{"data-exfiltration"}, guardrail.FlaggedCategories(eval.Details))
}

func TestPolicyGatewayCorrelatesTurn(t *testing.T) {
	var requests []policyRequest
	server := policyServer(t, policyResponse{Allowed: true}, &requests)

	evaluator, err := NewPolicyGatewayEvaluator("policy", PolicyConfig{Endpoint: server.URL})
	require.NoError(t, err)

	sessionID := types.NewID()
	ctx := guardrail.WithSessionID(context.Background(), sessionID)

	// One turn: pre-model and post-model calls share a request ID.
	_, err = evaluator.Evaluate(ctx, guardrail.StageBeforeRequest, "the prompt", "", &guardrail.StageConfig{})
	require.NoError(t, err)
	_, err = evaluator.Evaluate(ctx, guardrail.StageAfterResponse, "the response", "", &guardrail.StageConfig{})
	require.NoError(t, err)

	require.Len(t, requests, 2)
	assert.Equal(t, requests[0].RequestID, requests[1].RequestID)
	assert.Equal(t, sessionID.String(), requests[0].SessionID)

	// The turn completed, so the correlation entry is retired and the next
	// turn gets a fresh request ID.
	assert.Equal(t, 0, evaluator.correlations.len())

	_, err = evaluator.Evaluate(ctx, guardrail.StageBeforeRequest, "next prompt", "", &guardrail.StageConfig{})
	require.NoError(t, err)
	require.Len(t, requests, 3)
	assert.NotEqual(t, requests[0].RequestID, requests[2].RequestID)
}

func TestPolicyGatewayWithoutSession(t *testing.T) {
	var requests []policyRequest
	server := policyServer(t, policyResponse{Allowed: true}, &requests)

	evaluator, err := NewPolicyGatewayEvaluator("policy", PolicyConfig{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), guardrail.StageBeforeRequest, "a", "", &guardrail.StageConfig{})
	require.NoError(t, err)
	_, err = evaluator.Evaluate(context.Background(), guardrail.StageAfterResponse, "b", "", &guardrail.StageConfig{})
	require.NoError(t, err)

	// No session identifier, so the calls are uncorrelated and no state is kept.
	require.Len(t, requests, 2)
	assert.NotEqual(t, requests[0].RequestID, requests[1].RequestID)
	assert.Equal(t, 0, evaluator.correlations.len())
}

func TestPolicyGatewayServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	evaluator, err := NewPolicyGatewayEvaluator("policy", PolicyConfig{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), guardrail.StageBeforeRequest, "content", "", &guardrail.StageConfig{})

	require.Error(t, err)
	assert.Equal(t, types.BACKEND_REQUEST_FAILED, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestCorrelationStore(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		store := newCorrelationStore(10, time.Minute)
		id := types.NewID()

		store.put("session-1", id)

		got, ok := store.get("session-1")
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("missing session", func(t *testing.T) {
		store := newCorrelationStore(10, time.Minute)
		_, ok := store.get("absent")
		assert.False(t, ok)
	})

	t.Run("remove", func(t *testing.T) {
		store := newCorrelationStore(10, time.Minute)
		store.put("session-1", types.NewID())
		store.remove("session-1")

		_, ok := store.get("session-1")
		assert.False(t, ok)
		assert.Equal(t, 0, store.len())
	})

	t.Run("expired entries are dropped on read", func(t *testing.T) {
		store := newCorrelationStore(10, time.Nanosecond)
		store.put("session-1", types.NewID())
		time.Sleep(time.Millisecond)

		_, ok := store.get("session-1")
		assert.False(t, ok)
	})

	t.Run("oldest entry evicted at capacity", func(t *testing.T) {
		store := newCorrelationStore(2, time.Minute)
		store.put("first", types.NewID())
		time.Sleep(time.Millisecond)
		store.put("second", types.NewID())
		time.Sleep(time.Millisecond)
		store.put("third", types.NewID())

		assert.Equal(t, 2, store.len())
		_, ok := store.get("first")
		assert.False(t, ok)
		_, ok = store.get("third")
		assert.True(t, ok)
	})

	t.Run("safe under concurrent turns", func(t *testing.T) {
		store := newCorrelationStore(128, time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				session := types.NewID().String()
				for j := 0; j < 100; j++ {
					store.put(session, types.NewID())
					store.get(session)
					store.remove(session)
				}
			}(i)
		}
		wg.Wait()
	})
}
