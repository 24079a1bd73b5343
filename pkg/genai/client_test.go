package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shop-assist-go/internal/config"
)

// modelServer 按模型名返回预置的 HTTP 状态码，并记录调用顺序。
type modelServer struct {
	mu       sync.Mutex
	statuses map[string]int
	calls    []string
}

func (s *modelServer) handler(w http.ResponseWriter, r *http.Request) {
	// 路径形如 /models/<model>:generateContent
	path := strings.TrimPrefix(r.URL.Path, "/models/")
	model := strings.TrimSuffix(path, ":generateContent")

	s.mu.Lock()
	s.calls = append(s.calls, model)
	status := s.statuses[model]
	s.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":"reply from %s"}]}}]}`, model)
}

func (s *modelServer) callOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newTestClient(t *testing.T, statuses map[string]int, models []string) (Client, *modelServer) {
	t.Helper()
	ms := &modelServer{statuses: statuses}
	srv := httptest.NewServer(http.HandlerFunc(ms.handler))
	t.Cleanup(srv.Close)

	client := NewClient(config.GenAIConfig{
		APIKey:                "test-key",
		BaseURL:               srv.URL,
		Models:                models,
		AttemptTimeoutSeconds: 5,
	})
	return client, ms
}

func TestClient_FirstModelSucceeds(t *testing.T) {
	client, ms := newTestClient(t, map[string]int{
		"alpha": http.StatusOK,
	}, []string{"alpha", "beta"})

	text, err := client.Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "reply from alpha", text)
	assert.Equal(t, []string{"alpha"}, ms.callOrder())
}

func TestClient_QuotaExhaustedFallsThrough(t *testing.T) {
	client, ms := newTestClient(t, map[string]int{
		"alpha": http.StatusTooManyRequests,
		"beta":  http.StatusTooManyRequests,
		"gamma": http.StatusOK,
	}, []string{"alpha", "beta", "gamma"})

	text, err := client.Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "reply from gamma", text)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ms.callOrder())
}

func TestClient_AllModelsExhausted(t *testing.T) {
	client, ms := newTestClient(t, map[string]int{
		"alpha": http.StatusTooManyRequests,
		"beta":  http.StatusTooManyRequests,
	}, []string{"alpha", "beta"})

	_, err := client.Generate(context.Background(), "hello")

	assert.True(t, errors.Is(err, ErrAllModelsExhausted))
	assert.Equal(t, []string{"alpha", "beta"}, ms.callOrder())
}

func TestClient_AttemptTimeoutFallsThroughToNextModel(t *testing.T) {
	ms := &modelServer{statuses: map[string]int{"fast": http.StatusOK}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "slow") {
			ms.mu.Lock()
			ms.calls = append(ms.calls, "slow")
			ms.mu.Unlock()
			// 挂起直到客户端放弃本次尝试
			<-r.Context().Done()
			return
		}
		ms.handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.GenAIConfig{
		APIKey:                "test-key",
		BaseURL:               srv.URL,
		Models:                []string{"slow", "fast"},
		AttemptTimeoutSeconds: 1,
	})

	text, err := client.Generate(context.Background(), "hello")

	require.NoError(t, err)
	// 单次尝试超时等同配额耗尽，顺延到下一个模型
	assert.Equal(t, "reply from fast", text)
	assert.Equal(t, []string{"slow", "fast"}, ms.callOrder())
}

func TestClient_BadRequestFailsImmediately(t *testing.T) {
	client, ms := newTestClient(t, map[string]int{
		"alpha": http.StatusBadRequest,
		"beta":  http.StatusOK,
	}, []string{"alpha", "beta"})

	_, err := client.Generate(context.Background(), "hello")

	// 请求本身有缺陷，换模型没有意义
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Equal(t, []string{"alpha"}, ms.callOrder())
}

func TestClient_AuthFailureFailsImmediately(t *testing.T) {
	client, ms := newTestClient(t, map[string]int{
		"alpha": http.StatusUnauthorized,
		"beta":  http.StatusOK,
	}, []string{"alpha", "beta"})

	_, err := client.Generate(context.Background(), "hello")

	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.Equal(t, []string{"alpha"}, ms.callOrder())
}

func TestClient_NoModelsConfigured(t *testing.T) {
	client := NewClient(config.GenAIConfig{
		APIKey:                "test-key",
		BaseURL:               "http://127.0.0.1:0",
		AttemptTimeoutSeconds: 1,
	})

	_, err := client.Generate(context.Background(), "hello")

	assert.True(t, errors.Is(err, ErrAllModelsExhausted))
}
