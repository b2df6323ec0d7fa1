// SPDX-License-Identifier: Apache-2.0

// Package resilience provides timeout and retry boundaries for adapter calls.
// Failures surface as typed errors; callers decide how they degrade.
package resilience

import (
	"context"
	"time"

	"github.com/arenakit/arena/pkg/errors"
)

// WithTimeout executes fn under a deadline of d. A zero duration disables the
// boundary. Returns errors.CodeTimeout if the deadline is exceeded; the
// in-flight fn is abandoned, its eventual result discarded.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	if d == 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value string
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
