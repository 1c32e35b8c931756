package security

import (
	"context"
	"errors"
)

// MaxAllocationAttempts is the number of candidates Allocate tries before giving up.
const MaxAllocationAttempts = 10

// ErrAllocationExhausted is returned when every candidate collided with an existing value.
// It is a server-side failure and must not be reported to clients in detail.
var ErrAllocationExhausted = errors.New("unique value allocation exhausted")

// Allocate generates candidates until exists reports one as free, trying at most maxAttempts
// times. Errors from candidate or exists abort the loop and are returned as is.
func Allocate(
	ctx context.Context,
	candidate func() (string, error),
	exists func(ctx context.Context, value string) (bool, error),
	maxAttempts int,
) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = MaxAllocationAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, err := candidate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, v)
		if err != nil {
			return "", err
		}
		if !taken {
			return v, nil
		}
	}
	return "", ErrAllocationExhausted
}
