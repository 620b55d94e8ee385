package fraud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftpay/fraudwatch/internal/validation"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func floatPtr(f float64) *float64 { return &f }

func scoreReq(userID string, amount float64, country string, ts time.Time) *ScoreRequest {
	return &ScoreRequest{
		UserID:          userID,
		Amount:          floatPtr(amount),
		ReceiverAddress: "acct-destination",
		Country:         country,
		Timestamp:       &ts,
	}
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*MemoryStore
	failSaveTransaction bool
	failSaveProfile     bool
}

var errBackend = errors.New("backend unavailable")

func (s *failingStore) SaveTransaction(ctx context.Context, tx *Transaction) error {
	if s.failSaveTransaction {
		return errBackend
	}
	return s.MemoryStore.SaveTransaction(ctx, tx)
}

func (s *failingStore) SaveProfile(ctx context.Context, p *UserProfile) error {
	if s.failSaveProfile {
		return errBackend
	}
	return s.MemoryStore.SaveProfile(ctx, p)
}

// recordingNotifier captures notified transactions.
type recordingNotifier struct {
	mu  sync.Mutex
	txs []*Transaction
}

func (n *recordingNotifier) Notify(tx *Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txs = append(n.txs, tx)
}

func TestScoreTransaction_EndToEndScenario(t *testing.T) {
	// First transaction of a brand-new user: amount 1500, country FR,
	// hour 3. Only the high amount rule can fire on an empty baseline.
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	first, err := svc.ScoreTransaction(ctx,
		scoreReq("user-1", 1500, "FR", time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	assert.Equal(t, 30, first.Risk.Score)
	assert.Equal(t, []string{FactorHighAmount}, first.Risk.Factors)
	assert.Equal(t, StatusCompleted, first.Status)
	assert.NotEmpty(t, first.ID)

	// Second transaction: same amount, new country DE, new hour 14.
	// Baseline is now {FR}/{3}, so country and time rules fire too.
	second, err := svc.ScoreTransaction(ctx,
		scoreReq("user-1", 1500, "DE", time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	assert.Equal(t, 70, second.Risk.Score)
	assert.ElementsMatch(t,
		[]string{FactorHighAmount, FactorUnusualCountry, FactorUnusualTime},
		second.Risk.Factors)
	assert.Equal(t, StatusRejected, second.Status)
}

func TestScoreTransaction_ValidationFailures(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	cases := []struct {
		name string
		req  *ScoreRequest
	}{
		{"missing userId", &ScoreRequest{Amount: floatPtr(10), ReceiverAddress: "a", Country: "US"}},
		{"missing amount", &ScoreRequest{UserID: "u", ReceiverAddress: "a", Country: "US"}},
		{"negative amount", &ScoreRequest{UserID: "u", Amount: floatPtr(-1), ReceiverAddress: "a", Country: "US"}},
		{"missing receiver", &ScoreRequest{UserID: "u", Amount: floatPtr(10), Country: "US"}},
		{"missing country", &ScoreRequest{UserID: "u", Amount: floatPtr(10), ReceiverAddress: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ScoreTransaction(ctx, tc.req)
			var verrs validation.ValidationErrors
			require.ErrorAs(t, err, &verrs)
		})
	}

	// Nothing was evaluated or persisted.
	_, err := svc.GetRiskProfile(ctx, "u")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestScoreTransaction_TimestampDefaultsToNow(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	svc := NewService(store, WithClock(fixedClock(now)))

	tx, err := svc.ScoreTransaction(context.Background(), &ScoreRequest{
		UserID:          "user-1",
		Amount:          floatPtr(50),
		ReceiverAddress: "acct-destination",
		Country:         "US",
	})
	require.NoError(t, err)
	assert.True(t, tx.Timestamp.Equal(now))

	profile, err := svc.GetRiskProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, profile.HasHour(15))
}

func TestScoreTransaction_PersistenceFailureDiscardsVerdict(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), failSaveTransaction: true}
	svc := NewService(store)

	tx, err := svc.ScoreTransaction(context.Background(),
		scoreReq("user-1", 1500, "FR", time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)))

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, ErrPersistence)

	// The profile must not have absorbed the discarded transaction.
	profile, err := svc.GetRiskProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, profile.TransactionCount)
}

func TestScoreTransaction_ProfileSaveFailurePropagates(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), failSaveProfile: true}
	svc := NewService(store)

	_, err := svc.ScoreTransaction(context.Background(),
		scoreReq("user-1", 50, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestScoreTransaction_RejectedStillAdaptsBaseline(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	// Build a baseline, then submit a transaction that gets rejected.
	_, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 100, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	rejected, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 5000, "KP", time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	profile, err := svc.GetRiskProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.TransactionCount)
	assert.True(t, profile.HasCountry("KP"), "rejected transaction still enters the baseline")
}

func TestScoreTransaction_NotifierReceivesFlaggedAndRejected(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(NewMemoryStore(), WithNotifier(notifier))
	ctx := context.Background()

	// Completed: no notification.
	_, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 100, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Empty(t, notifier.txs)

	// unusual_country (25) + unusual_time (15) = 40: flagged.
	flagged, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 100, "BR", time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, StatusFlagged, flagged.Status)
	assert.Len(t, notifier.txs, 1)
}

func TestScoreTransaction_FrequencyWindowTracksProfileRule(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	svc := NewService(store, WithClock(fixedClock(now)))
	ctx := context.Background()

	// Three small transactions to establish average 10 and recent history.
	for i := 0; i < 3; i++ {
		_, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 10, "US", now.Add(-time.Duration(i+1)*time.Hour)))
		require.NoError(t, err)
	}

	// Two large ones inside the window.
	for i := 0; i < 2; i++ {
		_, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 500, "US", now.Add(-30*time.Minute)))
		require.NoError(t, err)
	}

	tx, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 10, "US", now.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Contains(t, tx.Risk.Factors, FactorHighFrequency)

	// Shrinking the window below the history's age disarms the rule.
	_, err = svc.UpdateRiskProfile(ctx, "user-1", &RiskProfilePatch{
		FrequencyWindowHours: floatPtr(0.1),
	})
	require.NoError(t, err)

	tx, err = svc.ScoreTransaction(ctx, scoreReq("user-1", 10, "US", now.Add(-time.Hour)))
	require.NoError(t, err)
	assert.NotContains(t, tx.Risk.Factors, FactorHighFrequency)
}

func TestUpdateRiskProfile_UnknownUser(t *testing.T) {
	svc := NewService(NewMemoryStore())

	_, err := svc.UpdateRiskProfile(context.Background(), "ghost", &RiskProfilePatch{
		HighAmountThreshold: floatPtr(500),
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateRiskProfile_PartialPatch(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 100, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	count := 5
	profile, err := svc.UpdateRiskProfile(ctx, "user-1", &RiskProfilePatch{
		HighAmountThreshold: floatPtr(250),
		FrequencyCount:      &count,
	})
	require.NoError(t, err)

	assert.Equal(t, 250.0, profile.HighAmountThreshold)
	assert.Equal(t, 5, profile.Frequency.Count)
	// Untouched field keeps its default.
	assert.Equal(t, DefaultFrequencyWindow, profile.Frequency.WindowHours)

	// The new threshold applies to the next evaluation.
	tx, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 300, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Contains(t, tx.Risk.Factors, FactorHighAmount)
}

func TestUpdateRiskProfile_RejectsNonPositiveValues(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.ScoreTransaction(ctx, scoreReq("user-1", 100, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = svc.UpdateRiskProfile(ctx, "user-1", &RiskProfilePatch{HighAmountThreshold: floatPtr(0)})
	var verrs validation.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestScoreTransaction_ConcurrentSameUser(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ScoreTransaction(ctx,
				scoreReq("user-1", 100, "US", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
			if err != nil {
				t.Errorf("score: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Per-user serialization: every application is folded exactly once.
	profile, err := svc.GetRiskProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), profile.TransactionCount)
	assert.InDelta(t, 100.0, profile.AverageAmount, 1e-9)
}
