// Package synth adapts each TTS provider's wire API to one Synthesizer
// contract and classifies provider failures into a small set of kinds.
package synth

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ttsblind/pregen/internal/credential"
)

// Provider kinds understood by the default registry.
const (
	KindOpenAI     = "openai"
	KindElevenLabs = "elevenlabs"
	KindGoogle     = "google"
)

// Default text limits per provider kind, used when the provider row leaves
// max_text_length at zero.
var defaultMaxTextLength = map[string]int{
	KindOpenAI:     4096,
	KindElevenLabs: 5000,
	KindGoogle:     5000,
}

// ProviderConfig is the provider row as the adapters see it.
type ProviderConfig struct {
	ID            string
	Kind          string
	BaseURL       string
	Model         string
	MaxTextLength int
}

// Request is one synthesis call.
type Request struct {
	Secret   credential.Secret
	Text     string
	Voice    string
	Language string
}

// Audio is the provider's response payload.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer turns text into audio for one provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

func (c ProviderConfig) maxTextLength() int {
	if c.MaxTextLength > 0 {
		return c.MaxTextLength
	}
	return defaultMaxTextLength[c.Kind]
}

// validate rejects requests the provider would refuse anyway, before any
// network traffic. Google limits input by bytes, the others by characters.
func (c ProviderConfig) validate(req Request, countBytes bool) error {
	if strings.TrimSpace(req.Text) == "" {
		return permanent(c.ID, fmt.Errorf("text is empty"))
	}
	if strings.TrimSpace(req.Voice) == "" {
		return permanent(c.ID, fmt.Errorf("voice is empty"))
	}
	if req.Secret == "" {
		return &Error{Kind: AuthError, Provider: c.ID, Err: fmt.Errorf("no credential supplied")}
	}
	n := utf8.RuneCountInString(req.Text)
	if countBytes {
		n = len(req.Text)
	}
	if limit := c.maxTextLength(); limit > 0 && n > limit {
		return permanent(c.ID, fmt.Errorf("text length %d exceeds limit %d", n, limit))
	}
	return nil
}

func permanent(provider string, err error) *Error {
	return &Error{Kind: PermanentRequestError, Provider: provider, Err: err}
}
