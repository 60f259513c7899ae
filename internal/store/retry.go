package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// RetryAppend runs f in a transaction and runs it again, from scratch, when
// it fails with ErrVersionConflict. Any other error is returned right away.
// After maxRetries extra attempts the conflict is returned to the caller.
func RetryAppend(ctx context.Context, s Store, maxRetries uint64, f func(tx Store) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	attempt := 0
	op := func() error {
		attempt++
		err := s.Transaction(ctx, f)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrVersionConflict) {
			logrus.Warnf("append attempt %d hit a version conflict, retrying", attempt)
			return err
		}

		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
}
