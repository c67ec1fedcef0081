package solver

import "context"

//go:generate mockgen -source=reporter.go -destination=./reporter_mock.go -package=solver

// Reporter receives the current nonce every ProgressInterval attempts. It is an
// observability hook only and must not block for long.
type Reporter interface {
	Report(ctx context.Context, nonce uint64)
}

// ReporterFunc adapts a host callback that takes the nonce as a float64
// (exact for nonces up to 2^53)
type ReporterFunc func(nonce float64)

func (f ReporterFunc) Report(_ context.Context, nonce uint64) {
	f(float64(nonce))
}
