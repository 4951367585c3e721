package bakong

import (
	"context"

	"github.com/rs/zerolog/log"

	"coffeeshop/internal/domain"
)

// Lookup is anything that can verify a content hash.
type Lookup interface {
	Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error)
}

// OutcomeCache stores settled outcomes by content hash.
type OutcomeCache interface {
	GetVerification(ctx context.Context, contentHash string) (*domain.VerificationOutcome, error)
	SetVerification(ctx context.Context, contentHash string, outcome domain.VerificationOutcome) error
}

// CachingVerifier answers from cache once a hash is known to be settled.
// Only Verified outcomes are cached; Pending and Error always go to the switch.
type CachingVerifier struct {
	next  Lookup
	cache OutcomeCache
}

// NewCachingVerifier wraps next with cache.
func NewCachingVerifier(next Lookup, cache OutcomeCache) *CachingVerifier {
	return &CachingVerifier{next: next, cache: cache}
}

// Configured forwards to the wrapped lookup when it can tell.
func (v *CachingVerifier) Configured() bool {
	if c, ok := v.next.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

// Verify implements Lookup.
func (v *CachingVerifier) Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error) {
	cached, err := v.cache.GetVerification(ctx, contentHash)
	if err != nil {
		log.Warn().Err(err).Str("md5", contentHash).Msg("bakong: verification cache read failed")
	} else if cached != nil {
		return *cached, nil
	}

	outcome, err := v.next.Verify(ctx, contentHash)
	if err != nil {
		return outcome, err
	}

	if outcome.Verified() {
		if err := v.cache.SetVerification(ctx, contentHash, outcome); err != nil {
			log.Warn().Err(err).Str("md5", contentHash).Msg("bakong: verification cache write failed")
		}
	}
	return outcome, nil
}
