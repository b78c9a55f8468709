package runner_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-autoeval/internal/config"
	"github.com/ahrav/go-autoeval/internal/domain"
	"github.com/ahrav/go-autoeval/internal/runner"
	"github.com/ahrav/go-autoeval/internal/transport"
)

func modelConfig(endpoint string) config.ModelAPIConfig {
	cfg := config.DefaultConfig().Model
	cfg.Endpoint = endpoint
	cfg.Timeout = time.Second
	cfg.MaxRetries = 0
	cfg.RetryInterval = time.Millisecond
	return cfg
}

func testRows(n int) []domain.Row {
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.Row{ID: fmt.Sprintf("%d", i+1), Input: fmt.Sprintf("input %d", i+1)}
	}
	return rows
}

func TestRunSequentialSuccess(t *testing.T) {
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"output": "reply %d"}`, len(bodies))
	}))
	defer server.Close()

	r := runner.New(transport.NewCaller(server.Client(), nil), modelConfig(server.URL), "tester", nil)
	rows := testRows(3)
	outcomes := r.Run(context.Background(), rows)

	require.Len(t, outcomes, 3)
	for i, out := range outcomes {
		assert.Equal(t, rows[i].ID, out.RowID)
		assert.Equal(t, fmt.Sprintf("reply %d", i+1), out.Output)
		assert.Empty(t, out.Err)
		require.NotNil(t, out.ElapsedMs)
		require.NotNil(t, out.Status)
		assert.Equal(t, http.StatusOK, *out.Status)
		assert.False(t, out.StartedAt.IsZero())
	}

	// One call per row, in dataset order.
	require.Len(t, bodies, 3)
	assert.Equal(t, "input 1", bodies[0]["input"])
	assert.Equal(t, "input 3", bodies[2]["input"])
}

func TestRunIsolatesRowFailures(t *testing.T) {
	var call int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		call++
		if call == 2 {
			http.Error(w, "model exploded", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"output": "ok"}`))
	}))
	defer server.Close()

	r := runner.New(transport.NewCaller(server.Client(), nil), modelConfig(server.URL), "tester", nil)
	outcomes := r.Run(context.Background(), testRows(3))

	require.Len(t, outcomes, 3)
	assert.Empty(t, outcomes[0].Err)
	assert.Empty(t, outcomes[2].Err, "rows after a failure are still processed")

	assert.Empty(t, outcomes[1].Output)
	assert.Contains(t, outcomes[1].Err, "HTTP 500")
	assert.Contains(t, outcomes[1].Err, "model exploded")
	require.NotNil(t, outcomes[1].Status)
	assert.Equal(t, http.StatusInternalServerError, *outcomes[1].Status)
	require.NotNil(t, outcomes[1].ElapsedMs)
}

func TestRunTimeoutOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	cfg := modelConfig(server.URL)
	cfg.Timeout = 20 * time.Millisecond

	r := runner.New(transport.NewCaller(server.Client(), nil), cfg, "tester", nil)
	outcomes := r.Run(context.Background(), testRows(1))

	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Status)
	assert.Nil(t, outcomes[0].ElapsedMs)
	assert.Contains(t, outcomes[0].Err, string(domain.CallTimeout))
}

func TestRunExtractionFailureKeepsHTTPSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{broken json"))
	}))
	defer server.Close()

	r := runner.New(transport.NewCaller(server.Client(), nil), modelConfig(server.URL), "tester", nil)
	outcomes := r.Run(context.Background(), testRows(1))

	require.Len(t, outcomes, 1)
	assert.Contains(t, outcomes[0].Err, "extract output")
	require.NotNil(t, outcomes[0].Status)
	assert.Equal(t, http.StatusOK, *outcomes[0].Status)
	require.NotNil(t, outcomes[0].ElapsedMs)
}

func TestRunContextCancelMarksRemainder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var processed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		processed++
		if processed == 2 {
			cancel()
		}
		_, _ = w.Write([]byte(`{"output": "ok"}`))
	}))
	defer server.Close()

	r := runner.New(transport.NewCaller(server.Client(), nil), modelConfig(server.URL), "tester", nil)
	rows := testRows(4)
	outcomes := r.Run(ctx, rows)

	require.Len(t, outcomes, 4, "every row gets an outcome")
	assert.Equal(t, 2, processed)
	assert.Empty(t, outcomes[0].Err)
	assert.Empty(t, outcomes[1].Err)
	for i := 2; i < 4; i++ {
		assert.Equal(t, rows[i].ID, outcomes[i].RowID)
		assert.Contains(t, outcomes[i].Err, "run aborted before row was processed")
		assert.Empty(t, outcomes[i].Output)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output": "stable reply"}`))
	}))
	defer server.Close()

	r := runner.New(transport.NewCaller(server.Client(), nil), modelConfig(server.URL), "tester", nil)
	rows := testRows(3)

	first := r.Run(context.Background(), rows)
	second := r.Run(context.Background(), rows)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Output, second[i].Output)
		assert.Equal(t, first[i].Err, second[i].Err)
		assert.Equal(t, first[i].RowID, second[i].RowID)
	}
}

func TestRunOnRowObservesEachOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output": "ok"}`))
	}))
	defer server.Close()

	r := runner.New(transport.NewCaller(server.Client(), nil), modelConfig(server.URL), "tester", nil)
	var seen []int
	r.OnRow = func(i int, out domain.ModelOutcome) {
		seen = append(seen, i)
		assert.Equal(t, "ok", out.Output)
	}

	r.Run(context.Background(), testRows(3))
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestPayloadShapes(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = nil
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"output": "ok"}`))
	}))
	defer server.Close()

	rows := testRows(1)

	t.Run("generic", func(t *testing.T) {
		cfg := modelConfig(server.URL)
		cfg.Kind = config.ModelKindGeneric
		cfg.InputField = "prompt"
		runner.New(transport.NewCaller(server.Client(), nil), cfg, "tester", nil).Run(context.Background(), rows)

		assert.Equal(t, map[string]any{"prompt": "input 1"}, body)
	})

	t.Run("dify completion", func(t *testing.T) {
		cfg := modelConfig(server.URL)
		cfg.Kind = config.ModelKindDifyCompletion
		cfg.InputField = "query"
		runner.New(transport.NewCaller(server.Client(), nil), cfg, "tester", nil).Run(context.Background(), rows)

		assert.Equal(t, map[string]any{"query": "input 1"}, body["inputs"])
		assert.Equal(t, "blocking", body["response_mode"])
		assert.Equal(t, "tester", body["user"])
	})

	t.Run("dify chat", func(t *testing.T) {
		cfg := modelConfig(server.URL)
		cfg.Kind = config.ModelKindDifyChat
		runner.New(transport.NewCaller(server.Client(), nil), cfg, "tester", nil).Run(context.Background(), rows)

		assert.Equal(t, "input 1", body["query"])
		assert.Equal(t, map[string]any{}, body["inputs"])
		assert.Equal(t, "blocking", body["response_mode"])
		assert.Equal(t, "tester", body["user"])
	})
}
