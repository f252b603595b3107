//go:generate go run go.uber.org/mock/mockgen -source=limiter.go -destination=../mocks/mock_limiter.go -package=mocks
// Package ratelimit gates the admission pipeline with a per-identity
// cooldown: at most one admitted post per identity per cooldown window.
package ratelimit

import (
	"context"
	"time"

	"whisperfeed/domain"
)

// Limiter admits at most one post per identity per cooldown window.
// TryAdmit returns whether the post wins the window and, on refusal, how
// long the caller must wait. Implementations must guarantee a single winner
// under concurrent calls for the same identity, with per-identity
// granularity so unrelated identities never contend.
type Limiter interface {
	TryAdmit(ctx context.Context, identity domain.Identity, now time.Time) (bool, time.Duration, error)
}
