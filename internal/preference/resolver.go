// Package preference resolves the per-user, per-event-type channel matrix
// that decides which delivery channels a notification fans out to.
package preference

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/cache"
	"github.com/fundlane/notification/internal/domain"
)

// defaultTTL bounds how long a resolved matrix may be served from cache
// before stored overrides are re-read.
const defaultTTL = 30 * time.Second

// Resolver overlays stored per-channel overrides on the default matrix.
type Resolver struct {
	repo  domain.PreferenceRepository
	cache *cache.Cache
}

// NewResolver creates a Resolver with a 30-second read-through cache.
func NewResolver(repo domain.PreferenceRepository) *Resolver {
	return NewResolverWithCache(repo, cache.New(defaultTTL))
}

// NewResolverWithCache creates a Resolver with an explicit cache, for tests.
func NewResolverWithCache(repo domain.PreferenceRepository, c *cache.Cache) *Resolver {
	return &Resolver{repo: repo, cache: c}
}

// Resolve returns the effective channel matrix for (userID, eventType).
// Channels without a stored override fall back to the default for the event
// type; event types unknown to the default matrix resolve to all-enabled.
// Suppressing a notification silently is worse than an unwanted send, so
// resolution fails open. The user is never required to exist.
func (r *Resolver) Resolve(ctx context.Context, userID, eventType string) (domain.ChannelMatrix, error) {
	key := userID + ":" + eventType
	if cached, ok := r.cache.Get(key); ok {
		return cached.(domain.ChannelMatrix), nil
	}

	overrides, err := r.repo.Overrides(ctx, userID, eventType)
	if err != nil {
		return domain.ChannelMatrix{}, fmt.Errorf("load preference overrides: %w", err)
	}

	matrix := Default(eventType)
	for ch, enabled := range overrides {
		switch ch {
		case domain.ChannelEmail:
			matrix.Email = enabled
		case domain.ChannelPush:
			matrix.Push = enabled
		case domain.ChannelInternal:
			matrix.Internal = enabled
		}
	}

	r.cache.Set(key, matrix)
	return matrix, nil
}

// Update upserts the non-nil channels of partial for (userID, eventType).
// The upsert is keyed by (user, event type, channel); applying the same
// update twice leaves stored state unchanged.
func (r *Resolver) Update(ctx context.Context, userID, eventType string, partial domain.PartialMatrix) error {
	var prefs []domain.Preference
	add := func(ch domain.Channel, v *bool) {
		if v != nil {
			prefs = append(prefs, domain.Preference{
				UserID: userID, EventType: eventType, Channel: ch, Enabled: *v,
			})
		}
	}
	add(domain.ChannelEmail, partial.Email)
	add(domain.ChannelPush, partial.Push)
	add(domain.ChannelInternal, partial.Internal)

	if len(prefs) == 0 {
		return nil
	}

	if err := r.repo.Upsert(ctx, prefs); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}

	r.cache.Invalidate(userID + ":" + eventType)

	log.Debug().
		Str("user", userID).
		Str("event_type", eventType).
		Int("channels", len(prefs)).
		Msg("notification preferences updated")
	return nil
}
