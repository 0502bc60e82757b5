// Package report is the error-reporting sink of the pipeline. Everything that
// must be surfaced but must not crash or block the caller goes through a
// Reporter: exhausted queue retries, per-item failures inside verifier sweeps,
// campaign-fatal dispatch errors.
package report

import "github.com/rs/zerolog"

// Reporter captures an error with context tags. Implementations never block
// the caller and never return an error themselves.
type Reporter interface {
	Capture(err error, tags map[string]string)
}

// LogReporter writes captures to a structured logger.
type LogReporter struct {
	Log zerolog.Logger
}

func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{Log: log.With().Str("component", "reporter").Logger()}
}

func (r *LogReporter) Capture(err error, tags map[string]string) {
	if err == nil {
		return
	}
	ev := r.Log.Error().Err(err)
	for k, v := range tags {
		ev = ev.Str(k, v)
	}
	ev.Msg("captured error")
}

// Nop discards every capture. Useful in tests.
type Nop struct{}

func (Nop) Capture(error, map[string]string) {}
