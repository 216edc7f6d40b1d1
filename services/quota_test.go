package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedpulse/survey-server/models"
)

// fakeClock drives the memory cache's TTL without sleeping.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestQuotaUnlimitedTenant(t *testing.T) {
	db := openTestDB(t)
	tenant := createTenant(t, db, "acme", 0)
	gate := NewQuotaGate(db)

	d, err := gate.CanAccept(context.Background(), tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.EqualValues(t, -1, d.Remaining)
}

func TestQuotaLimitedTenant(t *testing.T) {
	db := openTestDB(t)
	tenant := createTenant(t, db, "acme", 3)
	require.NoError(t, db.Model(&tenant).Update("response_count", 2).Error)
	gate := NewQuotaGate(db)

	d, err := gate.CanAccept(context.Background(), tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.EqualValues(t, 1, d.Remaining)
	assert.EqualValues(t, 3, d.Limit)
}

func TestQuotaExhaustedTenant(t *testing.T) {
	db := openTestDB(t)
	tenant := createTenant(t, db, "acme", 2)
	require.NoError(t, db.Model(&tenant).Update("response_count", 2).Error)
	gate := NewQuotaGate(db)

	d, err := gate.CanAccept(context.Background(), tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.EqualValues(t, 0, d.Remaining)
}

func TestQuotaDecisionIsCachedUntilTTL(t *testing.T) {
	db := openTestDB(t)
	tenant := createTenant(t, db, "acme", 10)
	clock := &fakeClock{now: time.Now()}
	gate := NewQuotaGate(db,
		WithQuotaCache(NewMemoryQuotaCache(clock.Now)),
		WithQuotaTTL(30*time.Second),
	)
	ctx := context.Background()

	d, err := gate.CanAccept(ctx, tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.EqualValues(t, 10, d.Limit)

	// A plan change is invisible while the cached decision is fresh.
	require.NoError(t, db.Model(&models.Tenant{}).
		Where("id = ?", tenant.ID).Update("response_limit", 0).Error)

	d, err = gate.CanAccept(ctx, tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.EqualValues(t, 10, d.Limit, "stale entry served within TTL")

	clock.Advance(31 * time.Second)
	d, err = gate.CanAccept(ctx, tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.EqualValues(t, -1, d.Remaining, "expired entry refreshed from the store")
}

func TestQuotaInvalidateDropsCacheImmediately(t *testing.T) {
	db := openTestDB(t)
	tenant := createTenant(t, db, "acme", 10)
	clock := &fakeClock{now: time.Now()}
	gate := NewQuotaGate(db, WithQuotaCache(NewMemoryQuotaCache(clock.Now)))
	ctx := context.Background()

	_, err := gate.CanAccept(ctx, tenant.ID, MetricResponses)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Tenant{}).
		Where("id = ?", tenant.ID).Update("response_limit", 1).Error)
	gate.Invalidate(ctx, tenant.ID, MetricResponses)

	d, err := gate.CanAccept(ctx, tenant.ID, MetricResponses)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Limit)
}

func TestQuotaUnknownMetricUnrestricted(t *testing.T) {
	db := openTestDB(t)
	tenant := createTenant(t, db, "acme", 1)
	gate := NewQuotaGate(db)

	d, err := gate.CanAccept(context.Background(), tenant.ID, "seats")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
