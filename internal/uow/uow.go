package uow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

const (
	defaultAttempts = 3
	retryBackoff    = 10 * time.Millisecond
)

// UoW represents a unit of work.
type UoW struct {
	store    repository.Store
	attempts int
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store, attempts: defaultAttempts}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
//
// A serialization failure reruns fn from scratch on a fresh transaction;
// hooks registered by a failed attempt are discarded. When the attempts are
// used up, or the store cannot open or commit the transaction, the error
// wraps domain.ErrTransactionFailure. Any other error from fn is returned as is.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos, after func(AfterCommit)) error,
) error {
	const op = "uow.UoW.Do"

	var (
		hooks []AfterCommit
		err   error
	)

	for attempt := 1; attempt <= u.attempts; attempt++ {
		hooks = hooks[:0]

		err = u.store.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil {
			break
		}

		if !errors.Is(err, repository.ErrSerialization) {
			break
		}

		if attempt == u.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w: %w", op, domain.ErrTransactionFailure, ctx.Err())
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}

	if err != nil {
		if errors.Is(err, repository.ErrSerialization) || errors.Is(err, repository.ErrTxFailed) {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrTransactionFailure, err)
		}
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
