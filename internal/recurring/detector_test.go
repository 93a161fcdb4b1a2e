package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func seedTx(t *testing.T, st *store.MemoryStore, accountID uuid.UUID, day time.Time, amount, recipient string) *model.PersistedTransaction {
	t.Helper()
	tx := &model.PersistedTransaction{
		ID:        uuid.New(),
		AccountID: accountID,
		CanonicalTransaction: model.CanonicalTransaction{
			Date:      day,
			Amount:    dec(amount),
			Recipient: recipient,
			Currency:  "EUR",
		},
		Fingerprint: uuid.NewString(),
	}
	require.NoError(t, st.CreateTransaction(context.Background(), tx))
	return tx
}

func newDetector(t *testing.T) (*Detector, *store.MemoryStore, uuid.UUID) {
	t.Helper()
	st := store.NewMemoryStore()
	account := &model.Account{ID: uuid.New(), Name: "giro", Currency: "EUR"}
	require.NoError(t, st.CreateAccount(context.Background(), account))
	return NewDetector(st, st), st, account.ID
}

func TestDetect_MonthlySubscription(t *testing.T) {
	d, st, accountID := newDetector(t)
	now := date(2026, 5, 1)

	seedTx(t, st, accountID, date(2026, 1, 15), "-9.99", "NETFLIX.COM")
	seedTx(t, st, accountID, date(2026, 2, 15), "-9.99", "Netflix.com")
	seedTx(t, st, accountID, date(2026, 3, 15), "-9.99", "NETFLIX.COM")
	seedTx(t, st, accountID, date(2026, 4, 15), "-9.99", "NETFLIX.COM")

	detections, err := d.Detect(context.Background(), accountID, now)
	require.NoError(t, err)
	require.Len(t, detections, 1)

	g := detections[0].Group
	assert.Equal(t, 4, g.OccurrenceCount)
	assert.True(t, g.AverageAmount.Equal(dec("-9.99")))
	assert.InDelta(t, 30, g.AverageIntervalDays, 1.5)
	assert.Equal(t, date(2026, 1, 15), g.FirstDate)
	assert.Equal(t, date(2026, 4, 15), g.LastDate)
	assert.True(t, g.Active)
	assert.GreaterOrEqual(t, g.Confidence, 0.5)
	assert.LessOrEqual(t, g.Confidence, 1.0)
	// Next charge predicted one mean interval after the last one.
	assert.Equal(t, date(2026, 5, 15), g.PredictedNext)
	assert.Len(t, detections[0].TransactionIDs, 4)
}

func TestDetect_TwoOccurrencesNeverGroup(t *testing.T) {
	d, st, accountID := newDetector(t)
	seedTx(t, st, accountID, date(2026, 1, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 2, 15), "-9.99", "Netflix")

	detections, err := d.Detect(context.Background(), accountID, date(2026, 3, 1))
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetect_IrregularIntervalsRejected(t *testing.T) {
	d, st, accountID := newDetector(t)
	seedTx(t, st, accountID, date(2026, 1, 2), "-25.00", "Corner Cafe")
	seedTx(t, st, accountID, date(2026, 1, 13), "-25.00", "Corner Cafe")
	seedTx(t, st, accountID, date(2026, 2, 3), "-25.00", "Corner Cafe")
	seedTx(t, st, accountID, date(2026, 3, 22), "-25.00", "Corner Cafe")

	detections, err := d.Detect(context.Background(), accountID, date(2026, 4, 1))
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetect_AmountDriftWithinTolerance(t *testing.T) {
	d, st, accountID := newDetector(t)
	// Utility bill drifts by cents month to month; still one cluster.
	seedTx(t, st, accountID, date(2026, 1, 1), "-41.20", "Stadtwerke")
	seedTx(t, st, accountID, date(2026, 2, 1), "-42.05", "Stadtwerke")
	seedTx(t, st, accountID, date(2026, 3, 1), "-40.80", "Stadtwerke")

	detections, err := d.Detect(context.Background(), accountID, date(2026, 3, 15))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, 3, detections[0].Group.OccurrenceCount)
}

func TestDetect_SeparateAmountClusters(t *testing.T) {
	d, st, accountID := newDetector(t)
	// Same recipient, two distinct price points far apart.
	for m := 1; m <= 3; m++ {
		seedTx(t, st, accountID, date(2026, m, 5), "-9.99", "Spotify AB")
		seedTx(t, st, accountID, date(2026, m, 5), "-99.00", "Spotify AB")
	}

	detections, err := d.Detect(context.Background(), accountID, date(2026, 3, 20))
	require.NoError(t, err)
	assert.Len(t, detections, 2)
}

func TestDetect_InactiveAfterSixtyDays(t *testing.T) {
	d, st, accountID := newDetector(t)
	seedTx(t, st, accountID, date(2026, 1, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 2, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 3, 15), "-9.99", "Netflix")
	// Keep the account itself current so "now" stays the reference.
	seedTx(t, st, accountID, date(2026, 8, 1), "-3.50", "Corner Cafe")

	detections, err := d.Detect(context.Background(), accountID, date(2026, 8, 20))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.False(t, detections[0].Group.Active)
}

func TestDetect_StaleAccountUsesOwnLatestDate(t *testing.T) {
	d, st, accountID := newDetector(t)
	// The whole account's data ends years ago; recency is judged against
	// its own latest row, so the subscription still reads as active.
	seedTx(t, st, accountID, date(2021, 1, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2021, 2, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2021, 3, 15), "-9.99", "Netflix")

	detections, err := d.Detect(context.Background(), accountID, date(2026, 8, 20))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.True(t, detections[0].Group.Active)
}

func TestDetect_EmptyAccount(t *testing.T) {
	d, _, accountID := newDetector(t)
	detections, err := d.Detect(context.Background(), accountID, date(2026, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestMatchesAnyPeriod_ConformanceBoundary(t *testing.T) {
	// 3 of 4 intervals near 30 days: 0.75 conformance, accepted.
	assert.True(t, matchesAnyPeriod([]float64{30, 30, 30, 95}))
	// 2 of 3: 0.67, rejected.
	assert.False(t, matchesAnyPeriod([]float64{30, 30, 95}))
	assert.False(t, matchesAnyPeriod(nil))
}

func TestConfidenceOf(t *testing.T) {
	// Perfectly even spacing.
	assert.Equal(t, 1.0, confidenceOf([]float64{30, 30, 30}, 30))
	// Wild spacing floors at 0.5.
	assert.Equal(t, 0.5, confidenceOf([]float64{5, 60, 5}, meanOf([]float64{5, 60, 5})))
}

func TestSync_CreateUpdateDelete(t *testing.T) {
	d, st, accountID := newDetector(t)
	ctx := context.Background()

	seedTx(t, st, accountID, date(2026, 1, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 2, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 3, 15), "-9.99", "Netflix")

	res, err := d.Sync(ctx, accountID, date(2026, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1}, res)

	stored, err := st.ListRecurringGroups(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	firstID := stored[0].ID

	members, err := st.RecurringMembers(ctx, firstID)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	// Another month arrives: the same group updates in place.
	seedTx(t, st, accountID, date(2026, 4, 15), "-9.99", "Netflix")
	res, err = d.Sync(ctx, accountID, date(2026, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Updated: 1}, res)

	stored, err = st.ListRecurringGroups(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, firstID, stored[0].ID, "update must preserve the group id")
	assert.Equal(t, 4, stored[0].OccurrenceCount)

	members, err = st.RecurringMembers(ctx, firstID)
	require.NoError(t, err)
	assert.Len(t, members, 4)
}

func TestSync_ManualOverrideSkipped(t *testing.T) {
	d, st, accountID := newDetector(t)
	ctx := context.Background()

	seedTx(t, st, accountID, date(2026, 1, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 2, 15), "-9.99", "Netflix")
	seedTx(t, st, accountID, date(2026, 3, 15), "-9.99", "Netflix")

	_, err := d.Sync(ctx, accountID, date(2026, 4, 1))
	require.NoError(t, err)

	stored, err := st.ListRecurringGroups(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	pinned := *stored[0]
	pinned.ManualOverride = true
	pinned.Active = false
	require.NoError(t, st.UpdateRecurringGroup(ctx, &pinned))

	res, err := d.Sync(ctx, accountID, date(2026, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Skipped: 1}, res)

	stored, err = st.ListRecurringGroups(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].ManualOverride)
	assert.False(t, stored[0].Active, "pinned group must keep its manual state")
}

func TestSync_StaleGroupDeleted(t *testing.T) {
	d, st, accountID := newDetector(t)
	ctx := context.Background()

	stale := &model.RecurringGroup{
		ID:            uuid.New(),
		AccountID:     accountID,
		Recipient:     "Old Gym",
		AverageAmount: dec("-29.00"),
	}
	require.NoError(t, st.CreateRecurringGroup(ctx, stale))

	res, err := d.Sync(ctx, accountID, date(2026, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Deleted: 1}, res)

	stored, err := st.ListRecurringGroups(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestClusterByAmount(t *testing.T) {
	txs := []*model.PersistedTransaction{
		{CanonicalTransaction: model.CanonicalTransaction{Amount: dec("-9.99")}},
		{CanonicalTransaction: model.CanonicalTransaction{Amount: dec("-10.50")}},
		{CanonicalTransaction: model.CanonicalTransaction{Amount: dec("-99.00")}},
		{CanonicalTransaction: model.CanonicalTransaction{Amount: dec("-11.99")}},
	}
	clusters := clusterByAmount(txs, decimal.NewFromInt(2))
	require.Len(t, clusters, 2)
	// Anchored on the first member: -10.50 and -11.99 join -9.99.
	assert.Equal(t, []int{0, 1, 3}, clusters[0].rows)
	assert.Equal(t, []int{2}, clusters[1].rows)
}
