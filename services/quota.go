package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/embedpulse/survey-server/models"
)

// MetricResponses is the lifetime response count checked against the
// tenant's plan limit before a submission is accepted.
const MetricResponses = "responses"

// QuotaDecision is the answer to one usage check.
type QuotaDecision struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"` // -1 when unlimited
	Limit     int64 `json:"limit"`     // 0 when unlimited
}

// QuotaCache is the short-TTL store behind the gate. The in-process
// implementation is the default; a Redis one is used when instances must
// share invalidation.
type QuotaCache interface {
	Get(ctx context.Context, key string) (QuotaDecision, bool)
	Set(ctx context.Context, key string, d QuotaDecision, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// QuotaGate answers "may this tenant accept another response" from a cached
// usage snapshot. Decisions are at most TTL stale; plan changes call
// Invalidate to drop the stale entry immediately.
type QuotaGate struct {
	db    *gorm.DB
	cache QuotaCache
	ttl   time.Duration
}

type QuotaOption func(*QuotaGate)

func WithQuotaCache(c QuotaCache) QuotaOption {
	return func(g *QuotaGate) { g.cache = c }
}

func WithQuotaTTL(d time.Duration) QuotaOption {
	return func(g *QuotaGate) { g.ttl = d }
}

func NewQuotaGate(db *gorm.DB, opts ...QuotaOption) *QuotaGate {
	g := &QuotaGate{db: db, ttl: 30 * time.Second}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = NewMemoryQuotaCache(nil)
	}
	return g
}

// CanAccept reports whether the tenant is under its plan limit for metric.
func (g *QuotaGate) CanAccept(ctx context.Context, tenantID uint, metric string) (QuotaDecision, error) {
	key := quotaKey(tenantID, metric)
	if d, ok := g.cache.Get(ctx, key); ok {
		return d, nil
	}

	var tenant models.Tenant
	if err := g.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		return QuotaDecision{}, fmt.Errorf("load tenant %d: %w", tenantID, err)
	}

	d := decide(tenant, metric)
	g.cache.Set(ctx, key, d, g.ttl)
	return d, nil
}

// Invalidate drops the cached decision, e.g. after a subscription change.
func (g *QuotaGate) Invalidate(ctx context.Context, tenantID uint, metric string) {
	g.cache.Delete(ctx, quotaKey(tenantID, metric))
}

func decide(tenant models.Tenant, metric string) QuotaDecision {
	if metric != MetricResponses {
		// Unknown metrics are unrestricted rather than blocking.
		return QuotaDecision{Allowed: true, Remaining: -1}
	}
	if tenant.ResponseLimit <= 0 {
		return QuotaDecision{Allowed: true, Remaining: -1}
	}
	remaining := tenant.ResponseLimit - tenant.ResponseCount
	if remaining < 0 {
		remaining = 0
	}
	return QuotaDecision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		Limit:     tenant.ResponseLimit,
	}
}

func quotaKey(tenantID uint, metric string) string {
	return fmt.Sprintf("quota:%d:%s", tenantID, metric)
}
