// Package guard serializes booking admission per environment. A request
// takes a short-lived lease in the distributed store before validating
// and inserting, so concurrent attempts for the same environment queue
// behind one winner instead of racing into the database. The database's
// own overlap check remains authoritative; the lease only narrows the
// window.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/store"
)

// ErrEnvironmentBusy is returned when another booking attempt currently
// holds the environment's admission lease.
var ErrEnvironmentBusy = errors.New("environment busy: another booking attempt is in progress")

// EnvironmentGuard hands out per-environment admission leases.
type EnvironmentGuard struct {
	store  store.Store
	logger *zap.Logger
	ttl    time.Duration
}

// NewEnvironmentGuard creates a guard with the given lease TTL. The TTL
// bounds how long a crashed request can block an environment.
func NewEnvironmentGuard(s store.Store, logger *zap.Logger, ttl time.Duration) *EnvironmentGuard {
	return &EnvironmentGuard{
		store:  s,
		logger: logger,
		ttl:    ttl,
	}
}

func leaseKey(environmentID int64) string {
	return fmt.Sprintf("environment:%d", environmentID)
}

// Acquire takes the admission lease for an environment on behalf of a
// holder. Returns ErrEnvironmentBusy when someone else holds it.
func (g *EnvironmentGuard) Acquire(ctx context.Context, environmentID int64, holder string) error {
	err := g.store.PutIfAbsent(ctx, leaseKey(environmentID), holder, g.ttl)
	if errors.Is(err, store.ErrKeyExists) {
		g.logger.Debug("Admission lease busy",
			zap.Int64("environment_id", environmentID),
			zap.String("holder", holder),
		)
		return ErrEnvironmentBusy
	}
	if err != nil {
		return fmt.Errorf("failed to acquire admission lease: %w", err)
	}

	g.logger.Debug("Admission lease acquired",
		zap.Int64("environment_id", environmentID),
		zap.String("holder", holder),
	)

	return nil
}

// Release frees the environment's lease. Releasing a lease that already
// expired is not an error.
func (g *EnvironmentGuard) Release(ctx context.Context, environmentID int64) {
	if err := g.store.Delete(ctx, leaseKey(environmentID)); err != nil {
		// The TTL will reclaim the lease; nothing to do but note it.
		g.logger.Warn("Failed to release admission lease",
			zap.Int64("environment_id", environmentID),
			zap.Error(err),
		)
	}
}
