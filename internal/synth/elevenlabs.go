package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	defaultElevenLabsModel   = "eleven_turbo_v2_5"
)

// ElevenLabs synthesizes speech through the ElevenLabs REST API.
type ElevenLabs struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewElevenLabs creates an ElevenLabs adapter. A nil client uses
// http.DefaultClient; per-call deadlines come from the context.
func NewElevenLabs(cfg ProviderConfig, client *http.Client) *ElevenLabs {
	if client == nil {
		client = http.DefaultClient
	}
	return &ElevenLabs{cfg: cfg, client: client}
}

func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if err := e.cfg.validate(req, false); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(e.cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	model := e.cfg.Model
	if model == "" {
		model = defaultElevenLabsModel
	}

	requestBody := map[string]any{
		"text":     req.Text,
		"model_id": model,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	// Only the v2.5 models accept an explicit language code.
	if req.Language != "" && strings.HasSuffix(model, "_v2_5") {
		requestBody["language_code"] = req.Language
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, permanent(e.cfg.ID, err)
	}

	endpoint := baseURL + "/v1/text-to-speech/" + url.PathEscape(req.Voice) + "?output_format=mp3_44100_128"
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, permanent(e.cfg.ID, fmt.Errorf("build request: %w", err))
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("xi-api-key", req.Secret.Reveal())
	apiReq.Header.Set("Accept", "audio/mpeg")

	resp, err := e.client.Do(apiReq)
	if err != nil {
		return nil, classifyTransport(e.cfg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(e.cfg.ID, resp.StatusCode, resp.Header, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(e.cfg.ID, fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, &Error{Kind: TransientNetworkError, Provider: e.cfg.ID, Status: resp.StatusCode, Err: errors.New("empty audio body")}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}
