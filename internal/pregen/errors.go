package pregen

import (
	"errors"
	"strings"

	"github.com/ttsblind/pregen/internal/audiostore"
	"github.com/ttsblind/pregen/internal/credential"
	"github.com/ttsblind/pregen/internal/synth"
)

// Reported kinds that do not come from a provider.
const (
	KindSelection = "selection_error"
	KindInternal  = "internal_error"
)

// KindOf maps an item or run error to the kind reported in summaries.
func KindOf(err error) string {
	var (
		se  *synth.Error
		ue  *credential.UnavailableError
		pe  *audiostore.PersistenceError
		sel *SelectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ue):
		return credential.KindUnavailable
	case errors.As(err, &se):
		return string(se.Kind)
	case errors.As(err, &pe):
		return audiostore.KindPersistence
	case errors.As(err, &sel):
		return KindSelection
	default:
		return KindInternal
	}
}

// redact removes any secret value from an error message before it is
// reported or logged.
func redact(msg string, secrets ...credential.Secret) string {
	for _, s := range secrets {
		if v := s.Reveal(); v != "" {
			msg = strings.ReplaceAll(msg, v, "[redacted]")
		}
	}
	return msg
}
