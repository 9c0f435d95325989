package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kangaroo/internal/application/port"
)

// DefaultSessionTTL expires a session 24h after creation, regardless of
// activity. The ledger is a bounded simulation, not durable state.
const DefaultSessionTTL = 24 * time.Hour

type sessionMeta struct {
	createdAt  time.Time
	lastActive time.Time
}

// SessionRegistry maps opaque session tokens to lifecycle metadata and is
// the only component allowed to cascade-delete session-scoped rows. Expiry
// is swept lazily, inline on every Resolve; there is no background timer.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionMeta

	repo        port.LedgerRepository
	ttl         time.Duration
	seedBalance float64
	clock       func() time.Time
}

func NewSessionRegistry(repo port.LedgerRepository, ttl time.Duration, seedBalance float64, clock func() time.Time) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if seedBalance <= 0 {
		seedBalance = DefaultSeedBalance
	}
	if clock == nil {
		clock = time.Now
	}
	return &SessionRegistry{
		sessions:    make(map[string]*sessionMeta),
		repo:        repo,
		ttl:         ttl,
		seedBalance: seedBalance,
		clock:       clock,
	}
}

// Resolve returns a live session id. A known, unexpired id is refreshed and
// returned unchanged; anything else gets a fresh token with a seeded account.
func (r *SessionRegistry) Resolve(ctx context.Context, sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.sweep(ctx, now)

	if sessionID != "" {
		if meta, ok := r.sessions[sessionID]; ok {
			meta.lastActive = now
			return sessionID, nil
		}
	}

	newID := newToken()
	if err := r.repo.SeedAccount(ctx, newID, r.seedBalance); err != nil {
		return "", err
	}
	r.sessions[newID] = &sessionMeta{createdAt: now, lastActive: now}
	log.Info().Str("session", newID).Msg("session created")
	return newID, nil
}

// Contains reports whether the registry currently tracks the id. No sweep.
func (r *SessionRegistry) Contains(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// sweep drops every session older than the TTL and cascades the delete of
// its ledger rows. A failed cascade is logged but the entry is still dropped:
// orphaned rows are an accepted, bounded cost.
func (r *SessionRegistry) sweep(ctx context.Context, now time.Time) {
	for id, meta := range r.sessions {
		if now.Sub(meta.createdAt) <= r.ttl {
			continue
		}
		if err := r.repo.PurgeSession(ctx, id); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("session cleanup failed")
		}
		delete(r.sessions, id)
		log.Info().Str("session", id).Msg("session expired")
	}
}

// newToken builds a 16-char opaque session id.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
