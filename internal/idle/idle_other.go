//go:build !linux && !darwin && !windows

package idle

import (
	"context"
	"time"
)

// NewQuerier has no host source here
func NewQuerier() Querier {
	return QuerierFunc(func(context.Context) (time.Duration, error) {
		return 0, ErrUnsupported
	})
}
