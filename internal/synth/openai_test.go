package synth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAISynthesize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	o := NewOpenAI(ProviderConfig{ID: "openai", Kind: KindOpenAI, BaseURL: srv.URL + "/v1/", Model: "gpt-4o-mini-tts"})
	audio, err := o.Synthesize(context.Background(), Request{Secret: "sk-test", Text: "hello", Voice: "alloy", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(audio.Data))
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, "hello", body["input"])
	assert.Equal(t, "alloy", body["voice"])
	assert.Equal(t, "gpt-4o-mini-tts", body["model"])
	assert.Equal(t, "mp3", body["response_format"])
}

func TestOpenAIErrorsAreNotRetriedBySDK(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, AuthError},
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusInternalServerError, TransientNetworkError},
		{http.StatusBadRequest, PermanentRequestError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"failed","type":"x"}}`))
			}))
			defer srv.Close()

			o := NewOpenAI(ProviderConfig{ID: "openai", Kind: KindOpenAI, BaseURL: srv.URL + "/v1/"})
			_, err := o.Synthesize(context.Background(), Request{Secret: "sk-test", Text: "hello", Voice: "alloy"})
			se, ok := AsError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.want, se.Kind)
			assert.Equal(t, tt.status, se.Status)
			assert.EqualValues(t, 1, calls.Load())
			assert.NotContains(t, err.Error(), "sk-test")
		})
	}
}
