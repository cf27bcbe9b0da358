package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arenvik/warden/internal/cache"
	"github.com/arenvik/warden/internal/tool"
)

// cacheKey identifies one (user, tool) effective-tier lookup.
type cacheKey struct {
	userID   string
	toolName string
}

// Resolver computes effective risk tiers. Resolution order:
//
//  1. A RequiresApproval default is returned unconditionally; no override
//     is consulted. This floor is never bypassable.
//  2. An override for (user, tool), if present.
//  3. The tool's default tier.
//
// Lookups go through a bounded TTL cache; a user promoting a tool need not be
// instantaneously visible to an in-flight gate call.
type Resolver struct {
	registry *tool.Registry
	store    Store
	cache    *cache.Cache[cacheKey, tool.RiskTier]
	now      func() time.Time
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// CacheCapacity bounds the tier cache. Defaults to 4096 entries.
	CacheCapacity int

	// CacheTTL bounds override-propagation staleness. Defaults to 30s.
	CacheTTL time.Duration

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// NewResolver creates a Resolver over the given registry and override store.
func NewResolver(registry *tool.Registry, store Store, cfg ResolverConfig) *Resolver {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 4096
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		registry: registry,
		store:    store,
		cache:    cache.New(cfg.CacheCapacity, cfg.CacheTTL, cache.WithClock[cacheKey, tool.RiskTier](now)),
		now:      now,
	}
}

// EffectiveTier returns the tier that governs this user's invocation of the
// named tool.
func (r *Resolver) EffectiveTier(ctx context.Context, userID, toolName string) (tool.RiskTier, error) {
	t, err := r.registry.Lookup(toolName)
	if err != nil {
		return "", err
	}

	// Hard floor: overrides are never consulted for RequiresApproval tools.
	if t.DefaultTier() == tool.TierRequiresApproval {
		return tool.TierRequiresApproval, nil
	}

	key := cacheKey{userID: userID, toolName: toolName}
	if tier, ok := r.cache.Get(key); ok {
		return tier, nil
	}

	tier := t.DefaultTier()
	override, err := r.store.Get(ctx, userID, toolName)
	switch {
	case err == nil:
		if candidate := tool.RiskTier(override.Tier); candidate.Valid() {
			tier = candidate
		}
	case errors.Is(err, ErrOverrideNotFound):
		// No override; keep the default.
	default:
		// Store failure: fall back to the default tier rather than failing
		// the gate call. The default is always at least as strict.
		return t.DefaultTier(), nil
	}

	r.cache.Set(key, tier)
	return tier, nil
}

// SetOverride records a promotion for a UserConfigurable tool. It fails with
// ErrInvalidPromotion when the tool's default is RequiresApproval or the
// requested tier is not reachable from the default.
func (r *Resolver) SetOverride(ctx context.Context, userID, toolName string, tier tool.RiskTier) error {
	t, err := r.registry.Lookup(toolName)
	if err != nil {
		return err
	}

	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidPromotion, tier)
	}
	if t.DefaultTier() == tool.TierRequiresApproval {
		return fmt.Errorf("%w: %s requires approval and cannot be promoted", ErrInvalidPromotion, toolName)
	}
	if tier == tool.TierRequiresApproval {
		return fmt.Errorf("%w: overrides cannot demote %s below its default", ErrInvalidPromotion, toolName)
	}
	// From here the default is AutoApprove or UserConfigurable and the
	// requested tier is AutoApprove or UserConfigurable; both are reachable.

	if err := r.store.Set(ctx, Override{
		UserID:    userID,
		ToolName:  toolName,
		Tier:      string(tier),
		UpdatedAt: r.now(),
	}); err != nil {
		return fmt.Errorf("policy: persist override: %w", err)
	}

	// Invalidate so the writer observes its own update immediately.
	r.cache.Delete(cacheKey{userID: userID, toolName: toolName})
	return nil
}

// EffectiveTiers returns the effective tier for every registered tool for
// the given user, keyed by tool name. Used by the settings surface.
func (r *Resolver) EffectiveTiers(ctx context.Context, userID string) (map[string]tool.RiskTier, error) {
	out := make(map[string]tool.RiskTier)
	for _, desc := range r.registry.Descriptors() {
		tier, err := r.EffectiveTier(ctx, userID, desc.Name)
		if err != nil {
			return nil, err
		}
		out[desc.Name] = tier
	}
	return out, nil
}
