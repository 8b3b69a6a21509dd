package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/internal/domain"
)

func TestNew_DispatchesToConfiguredProvider(t *testing.T) {
	p, err := New(config.ProviderConfig{Active: config.ProviderOllama, OllamaURL: "http://localhost:11434", Model: "nomic-embed-text"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = New(config.ProviderConfig{Active: config.ProviderOpenAI, OpenAIAPIKey: "sk-test"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New(config.ProviderConfig{Active: config.ProviderTogether, TogetherAPIKey: "key"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "together", p.Name())
}

func TestNew_UnknownProviderReturnsError(t *testing.T) {
	_, err := New(config.ProviderConfig{Active: config.Provider("bogus")}, 5)
	assert.Error(t, err)
}

func TestOllama_Embed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "nomic-embed-text", 5)
	v, err := p.Embed(context.Background(), "hello world")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, 768, p.Dimensions())
}

func TestOllama_Embed_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "nomic-embed-text", 5)
	_, err := p.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderTransient, domain.Kind(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestOllama_Embed_TooManyRequestsIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "nomic-embed-text", 5)
	_, err := p.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestOllama_Embed_BadRequestIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid model"))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "unknown-model", 5)
	_, err := p.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderTerminal, domain.Kind(err))
	assert.False(t, domain.IsRetryable(err))
}

func TestOllama_Embed_UnknownModelFallsBackToDefaultDimension(t *testing.T) {
	p := NewOllama("http://localhost:11434", "some-custom-model", 5)
	assert.Equal(t, 768, p.Dimensions())
}

func TestOllama_Embed_RequestTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"embedding":[0.1]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	p := NewOllama(srv.URL, "nomic-embed-text", 30)
	_, err := p.Embed(ctx, "hello")

	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderTransient, domain.Kind(err))
}

func TestNewOllama_WiresConfiguredTimeout(t *testing.T) {
	p := NewOllama("http://localhost:11434", "nomic-embed-text", 7)
	assert.Equal(t, 7*time.Second, p.client.Timeout)
}

func TestNewOpenAI_WiresConfiguredTimeoutAndDefaultModel(t *testing.T) {
	p := NewOpenAI("sk-test", "", 12)
	assert.Equal(t, 12*time.Second, p.client.Timeout)
	assert.Equal(t, "text-embedding-3-small", p.Model())
	assert.Equal(t, 1536, p.Dimensions())
}

func TestNewTogether_WiresConfiguredTimeoutAndDefaultModel(t *testing.T) {
	p := NewTogether("key", "", 9)
	assert.Equal(t, 9*time.Second, p.client.Timeout)
	assert.Equal(t, "togethercomputer/m2-bert-80M-8k-retrieval", p.Model())
	assert.Equal(t, 768, p.Dimensions())
}

func TestMapHTTPError_ClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status        int
		wantKind      domain.ErrorKind
		wantRetryable bool
	}{
		{http.StatusInternalServerError, domain.ErrProviderTransient, true},
		{http.StatusBadGateway, domain.ErrProviderTransient, true},
		{http.StatusTooManyRequests, domain.ErrProviderTransient, true},
		{http.StatusUnauthorized, domain.ErrProviderTerminal, false},
		{http.StatusBadRequest, domain.ErrProviderTerminal, false},
	}

	for _, tc := range cases {
		err := mapHTTPError(tc.status, "body", "ollama")
		assert.Equal(t, tc.wantKind, err.Kind, "status %d", tc.status)
		assert.Equal(t, tc.wantRetryable, err.Retryable, "status %d", tc.status)
		assert.Equal(t, "ollama", err.Provider)
	}
}

func TestDimensionFor_KnownAndUnknownModels(t *testing.T) {
	assert.Equal(t, 768, dimensionFor("nomic-embed-text", 999))
	assert.Equal(t, 1024, dimensionFor("mxbai-embed-large", 999))
	assert.Equal(t, 999, dimensionFor("totally-unknown", 999))
}
