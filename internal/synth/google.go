package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/ttsblind/pregen/internal/credential"
)

// Google synthesizes speech through Cloud Text-to-Speech over gRPC. The
// credential is a Cloud API key; a client is built per call so that no key
// outlives the request that used it.
type Google struct {
	cfg ProviderConfig

	clientOptions func(secret credential.Secret) []option.ClientOption
}

func NewGoogle(cfg ProviderConfig) *Google {
	g := &Google{cfg: cfg}
	g.clientOptions = g.defaultClientOptions
	return g
}

func (g *Google) defaultClientOptions(secret credential.Secret) []option.ClientOption {
	opts := []option.ClientOption{option.WithAPIKey(secret.Reveal())}
	if g.cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.BaseURL))
	}
	return opts
}

func (g *Google) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if err := g.cfg.validate(req, true); err != nil {
		return nil, err
	}

	client, err := texttospeech.NewClient(ctx, g.clientOptions(req.Secret)...)
	if err != nil {
		return nil, classifyTransport(g.cfg.ID, fmt.Errorf("create client: %w", err))
	}
	defer client.Close()
	// Drop the generated client's built-in retries.
	client.CallOptions.SynthesizeSpeech = nil

	resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: googleLanguageCode(req.Voice, req.Language),
			Name:         req.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, classifyGRPC(g.cfg.ID, err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, &Error{Kind: TransientNetworkError, Provider: g.cfg.ID, Err: errors.New("empty audio content")}
	}
	return &Audio{Data: resp.GetAudioContent(), ContentType: "audio/mpeg"}, nil
}

// googleLanguageCode prefers the locale embedded in a voice name such as
// "en-US-Neural2-A" and falls back to the item language.
func googleLanguageCode(voice, language string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) == 3 && len(parts[0]) >= 2 && len(parts[0]) <= 3 && len(parts[1]) >= 2 && len(parts[1]) <= 4 {
		return parts[0] + "-" + parts[1]
	}
	return language
}
