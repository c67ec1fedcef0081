package common

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/jpillora/backoff"
)

var (
	errRetriesExhausted = errors.New("retries exhausted")
)

// WriteJSONLine writes data as a single line of JSON
func WriteJSONLine(ctx context.Context, w io.Writer, data any) error {
	response, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to serialise record", ErrAttr(err))
		return err
	}

	response = append(response, '\n')

	if _, err := w.Write(response); err != nil {
		slog.ErrorContext(ctx, "Failed to write record", ErrAttr(err))
		return err
	}

	return nil
}

func IsLocalhost(address string) bool {
	return (address == "localhost") ||
		(address == "127.0.0.1") ||
		(address == "::1") ||
		(address == "0:0:0:0:0:0:0:1")
}

// IsLocalAddress reports whether a listen address (host:port) is bound to loopback only
func IsLocalAddress(address string) bool {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}

	return IsLocalhost(host)
}

// RetriableError is a wrapper for errors that should be retried.
type RetriableError struct {
	err error
}

func NewRetriableError(err error) RetriableError {
	return RetriableError{err}
}

func (e RetriableError) Error() string {
	return e.err.Error()
}

func (e RetriableError) Unwrap() error {
	return e.err
}

// RetryWithBackoff calls f until it succeeds, returns a non-retriable error,
// ctx is cancelled or maxAttempts are made
func RetryWithBackoff(ctx context.Context, minInterval, maxInterval time.Duration, maxAttempts int, f func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    minInterval,
		Max:    maxInterval,
		Factor: 2,
		Jitter: true,
	}

	var err error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = f(ctx)
		if err == nil {
			return nil
		}

		var rerr RetriableError
		if !errors.As(err, &rerr) {
			return err
		}

		delay := b.Duration()
		slog.WarnContext(ctx, "Retrying after error", "attempt", attempt, "delay", delay.String(), ErrAttr(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return errors.Join(errRetriesExhausted, err)
}
