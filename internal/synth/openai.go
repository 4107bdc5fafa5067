package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "tts-1"

// OpenAI synthesizes speech through the OpenAI audio API.
type OpenAI struct {
	cfg    ProviderConfig
	client openai.Client
}

// NewOpenAI creates an OpenAI adapter. The API key is supplied per request.
// SDK retries are off; callers own the retry policy.
func NewOpenAI(cfg ProviderConfig, opts ...option.RequestOption) *OpenAI {
	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)
	return &OpenAI{cfg: cfg, client: openai.NewClient(clientOpts...)}
}

func (o *OpenAI) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if err := o.cfg.validate(req, false); err != nil {
		return nil, err
	}

	model := o.cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}, option.WithAPIKey(req.Secret.Reveal()))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			var header http.Header
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			return nil, classifyStatus(o.cfg.ID, apiErr.StatusCode, header, []byte(apiErr.Message))
		}
		return nil, classifyTransport(o.cfg.ID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(o.cfg.ID, fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, &Error{Kind: TransientNetworkError, Provider: o.cfg.ID, Status: resp.StatusCode, Err: errors.New("empty audio body")}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}
