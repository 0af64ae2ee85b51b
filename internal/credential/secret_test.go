package credential

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestSecretIsRedacted(t *testing.T) {
	secret := New("sk-live-123")
	if secret.Reveal() != "sk-live-123" {
		t.Fatalf("expected raw value from Reveal")
	}
	for _, s := range []string{secret.String(), fmt.Sprintf("%v", secret), fmt.Sprintf("%#v", secret)} {
		if strings.Contains(s, "sk-live") {
			t.Fatalf("secret leaked in %q", s)
		}
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("configured", "api_key", secret)
	if strings.Contains(buf.String(), "sk-live") {
		t.Fatalf("secret leaked in log line %s", buf.String())
	}

	if New("").String() != "" {
		t.Fatalf("expected empty string for an unset secret")
	}
}
