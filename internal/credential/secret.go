package credential

import "log/slog"

const redacted = "[redacted]"

// Secret is a decrypted provider API key. Formatting, logging and JSON
// encoding all render it as "[redacted]"; Reveal is the only way out.
type Secret string

func (s Secret) Reveal() string { return string(s) }

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }
