package credential

import "log/slog"

const redacted = "[REDACTED]"

// Secret holds an API credential. Its String, GoString and LogValue
// forms are redacted; call Reveal only where the value goes on the wire.
type Secret struct {
	value string
}

func New(value string) Secret {
	return Secret{value: value}
}

func (s Secret) Reveal() string {
	return s.value
}

func (s Secret) IsZero() bool {
	return s.value == ""
}

func (s Secret) String() string {
	if s.IsZero() {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
