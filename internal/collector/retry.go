package collector

import (
	"context"
	"log"
	"time"
)

// RetryPolicy bounds how often a transport failure is retried.
type RetryPolicy struct {
	Budget int           // retries after the first attempt
	Delay  time.Duration // fixed wait between attempts
	// Sleep waits between attempts. Nil uses a timer bound to ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is three retries one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Budget: 3, Delay: time.Second}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls fn until it succeeds, fails with an error that is not a
// transport error, or the budget is spent. fn runs at most Budget+1 times and
// receives the zero-based attempt number.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	budget := max(p.Budget, 0)

	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn(ctx, attempt)
		if err == nil || !IsTransport(err) {
			return out, err
		}
		if attempt >= budget {
			log.Printf("[ERROR] %s: giving up after %d attempts: %v", op, attempt+1, err)
			return out, err
		}
		log.Printf("[WARN] %s: attempt %d failed, retrying in %s: %v", op, attempt+1, p.Delay, err)
		if serr := sleep(ctx, p.Delay); serr != nil {
			return out, err
		}
	}
}
