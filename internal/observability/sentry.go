// Package observability wires optional error reporting.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes Sentry error reporting. An empty DSN leaves
// reporting disabled; CaptureException calls become no-ops.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry drains buffered events; called during shutdown.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
