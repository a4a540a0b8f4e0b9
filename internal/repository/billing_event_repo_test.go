package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/scribe_server/internal/model"
	"github.com/qs3c/scribe_server/internal/testutil"
)

func TestBillingEventRepository_RecordAndProcessed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingEventRepository(db)
	ctx := context.Background()

	processed, err := repo.Processed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)

	event := &model.BillingEvent{
		ID:             "evt_1",
		Type:           "invoice.payment_succeeded",
		SubscriptionID: "sub_1",
		Status:         model.BillingEventApplied,
		ProcessedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Record(ctx, event))

	// 重复记录不报错
	require.NoError(t, repo.Record(ctx, event))

	processed, err = repo.Processed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestBillingEventRepository_IgnoredNotProcessed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewBillingEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, &model.BillingEvent{
		ID:          "evt_2",
		Type:        "customer.created",
		Status:      model.BillingEventIgnored,
		ProcessedAt: time.Now().UTC(),
	}))

	processed, err := repo.Processed(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, processed)
}
