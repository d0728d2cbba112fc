package errorreporting

import (
	"strings"
	"testing"
)

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name string
		in   string
		keep string
	}{
		{"email", "learner casey@example.com failed sign-in", "failed sign-in"},
		{"bearer token", "request with Bearer abcdef1234567890XYZ rejected", "rejected"},
		{"api key", "api_key=sk_live_abcdefgh12345678 leaked", "leaked"},
		{"user id", `payload user_id="u-12345" invalid`, "invalid"},
		{"ip address", "connection from 203.0.113.7 dropped", "dropped"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ScrubPII(tc.in)
			if !strings.Contains(got, "[REDACTED]") {
				t.Errorf("nothing redacted in %q -> %q", tc.in, got)
			}
			if !strings.Contains(got, tc.keep) {
				t.Errorf("non-PII text lost: %q", got)
			}
		})
	}
}

func TestScrubPIILeavesCleanTextAlone(t *testing.T) {
	in := "cache warming finished with 3 tasks"
	if got := ScrubPII(in); got != in {
		t.Errorf("clean text modified: %q", got)
	}
}

func TestValidateDSN(t *testing.T) {
	if err := ValidateDSN("https://key@o0.ingest.sentry.io/0"); err != nil {
		t.Errorf("valid DSN rejected: %v", err)
	}
	if err := ValidateDSN("not-a-dsn"); err == nil {
		t.Error("malformed DSN accepted")
	}
}

func TestInitWithoutDSNIsNoop(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	if err := Init("test"); err != nil {
		t.Errorf("Init without DSN must succeed: %v", err)
	}
	if IsSentryEnabled() {
		t.Error("Sentry must be disabled without a DSN")
	}
}
