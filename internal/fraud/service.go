package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftpay/fraudwatch/internal/metrics"
	"github.com/driftpay/fraudwatch/internal/syncutil"
	"github.com/driftpay/fraudwatch/internal/traces"
	"github.com/driftpay/fraudwatch/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

// Notifier receives evaluated transactions that ended up flagged or
// rejected. Implementations must not block.
type Notifier interface {
	Notify(tx *Transaction)
}

// Service orchestrates scoring: validate, serialize per user, read the
// profile and recent history, evaluate, persist the verdict, then fold the
// transaction into the baseline.
type Service struct {
	store    Store
	locks    syncutil.ShardedMutex
	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNotifier sets a sink for flagged/rejected verdicts.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scoring service backed by the given store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreRequest carries the fields of a transaction to be scored.
// Amount is a pointer so a missing field can be told apart from zero.
type ScoreRequest struct {
	UserID          string     `json:"userId"`
	Amount          *float64   `json:"amount"`
	ReceiverAddress string     `json:"receiverAddress"`
	Country         string     `json:"country"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

func (r *ScoreRequest) validate() validation.ValidationErrors {
	validators := []func() *validation.ValidationError{
		validation.Required("userId", r.UserID),
		validation.MaxLength("userId", r.UserID, validation.MaxStringLength),
		validation.Required("receiverAddress", r.ReceiverAddress),
		validation.MaxLength("receiverAddress", r.ReceiverAddress, validation.MaxStringLength),
		validation.Required("country", r.Country),
		validation.MaxLength("country", r.Country, validation.MaxStringLength),
	}
	if r.Amount == nil {
		validators = append(validators, func() *validation.ValidationError {
			return &validation.ValidationError{Field: "amount", Message: "is required"}
		})
	} else {
		validators = append(validators, validation.FiniteNonNegative("amount", *r.Amount))
	}
	return validation.Validate(validators...)
}

// ScoreTransaction evaluates a transaction and persists both the verdict
// and the adapted profile. The returned transaction carries the assigned
// ID, the risk assessment, and the final status.
//
// Evaluation and adaptation for a given user are serialized by a per-user
// lock so concurrent transactions cannot race the running-mean update.
// Different users proceed in parallel. If a store write fails, the
// computed verdict is discarded: a risk decision is never reported unless
// it was durably recorded.
func (s *Service) ScoreTransaction(ctx context.Context, req *ScoreRequest) (*Transaction, error) {
	if errs := req.validate(); len(errs) > 0 {
		return nil, errs
	}

	now := s.now()
	timestamp := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = *req.Timestamp
	}

	tx := &Transaction{
		UserID:          req.UserID,
		Amount:          *req.Amount,
		ReceiverAddress: req.ReceiverAddress,
		Country:         req.Country,
		Timestamp:       timestamp,
		Status:          StatusPending,
	}

	unlock := s.locks.Lock(req.UserID)
	defer unlock()

	profile, created, err := s.store.GetOrCreateProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load profile: %v", ErrPersistence, err)
	}
	if created {
		metrics.ProfilesCreatedTotal.Inc()
		s.logger.Info("profile created", "user_id", req.UserID)
	}

	since := now.Add(-profile.Frequency.Window())
	recent, err := s.store.FindTransactionsSince(ctx, req.UserID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: load recent transactions: %v", ErrPersistence, err)
	}

	ctx, span := traces.StartSpan(ctx, "fraud.evaluate",
		attribute.String("user_id", req.UserID),
		attribute.Int("recent_count", len(recent)),
	)
	assessment := Evaluate(tx, profile, recent)
	span.SetAttributes(attribute.Int("risk_score", assessment.Score))
	span.End()

	tx.Risk = &Risk{Score: assessment.Score, Factors: assessment.Factors}
	tx.Status = assessment.Status

	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: save transaction: %v", ErrPersistence, err)
	}

	Apply(profile, tx)
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("%w: save profile: %v", ErrPersistence, err)
	}

	metrics.ObserveAssessment(string(tx.Status), assessment.Score, assessment.Factors)

	if tx.Status == StatusRejected {
		// The baseline absorbs rejected transactions too. Logged so
		// operators can spot an attacker normalizing their own behavior.
		s.logger.Warn("rejected transaction folded into baseline",
			"user_id", tx.UserID,
			"transaction_id", tx.ID,
			"score", assessment.Score,
			"factors", assessment.Factors,
		)
	}

	if s.notifier != nil && (tx.Status == StatusFlagged || tx.Status == StatusRejected) {
		s.notifier.Notify(tx)
	}

	s.logger.Info("transaction scored",
		"user_id", tx.UserID,
		"transaction_id", tx.ID,
		"score", assessment.Score,
		"status", tx.Status,
	)
	return tx, nil
}

// ListRecent returns the user's latest transactions, newest first.
func (s *Service) ListRecent(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	txs, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ErrPersistence, err)
	}
	return txs, nil
}

// GetRiskProfile returns the user's learned profile, or ErrUserNotFound.
func (s *Service) GetRiskProfile(ctx context.Context, userID string) (*UserProfile, error) {
	return s.store.GetProfile(ctx, userID)
}

// RiskProfilePatch is a partial update of a user's risk settings. Nil
// fields are left unchanged.
type RiskProfilePatch struct {
	HighAmountThreshold  *float64 `json:"highAmountThreshold,omitempty"`
	FrequencyCount       *int     `json:"frequencyCount,omitempty"`
	FrequencyWindowHours *float64 `json:"frequencyWindowHours,omitempty"`
}

func (p *RiskProfilePatch) validate() validation.ValidationErrors {
	var validators []func() *validation.ValidationError
	if p.HighAmountThreshold != nil {
		validators = append(validators, validation.PositiveNumber("highAmountThreshold", *p.HighAmountThreshold))
	}
	if p.FrequencyCount != nil {
		validators = append(validators, validation.PositiveInt("frequencyCount", *p.FrequencyCount))
	}
	if p.FrequencyWindowHours != nil {
		validators = append(validators, validation.PositiveNumber("frequencyWindowHours", *p.FrequencyWindowHours))
	}
	return validation.Validate(validators...)
}

// UpdateRiskProfile applies a partial update to the user's risk settings.
// Returns ErrUserNotFound for users that have never been evaluated.
// Changes take effect on the user's next evaluation.
func (s *Service) UpdateRiskProfile(ctx context.Context, userID string, patch *RiskProfilePatch) (*UserProfile, error) {
	if errs := patch.validate(); len(errs) > 0 {
		return nil, errs
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.HighAmountThreshold != nil {
		profile.HighAmountThreshold = *patch.HighAmountThreshold
	}
	if patch.FrequencyCount != nil {
		profile.Frequency.Count = *patch.FrequencyCount
	}
	if patch.FrequencyWindowHours != nil {
		profile.Frequency.WindowHours = *patch.FrequencyWindowHours
	}

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("%w: save profile: %v", ErrPersistence, err)
	}

	s.logger.Info("risk profile updated", "user_id", userID)
	return profile, nil
}
