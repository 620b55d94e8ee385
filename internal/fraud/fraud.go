// Package fraud implements adaptive per-user transaction risk scoring.
//
// Every transaction is evaluated against 4 additive rules: high amount,
// unusual country, unusual time-of-day, and high-frequency large amounts.
// Points are summed into a 0-100 score and classified into a final status.
// After each evaluation the user's behavioral profile absorbs the
// transaction, so the baseline adapts online.
package fraud

import (
	"context"
	"errors"
	"time"
)

// Status is a transaction's lifecycle state. A transaction is created as
// pending and moved to exactly one of the other states by evaluation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFlagged   Status = "flagged"
	StatusRejected  Status = "rejected"
)

// Factor tags attached to a risk assessment when a rule fires.
const (
	FactorHighAmount     = "high_amount"
	FactorUnusualCountry = "unusual_country"
	FactorUnusualTime    = "unusual_time"
	FactorHighFrequency  = "high_frequency_large_amounts"
)

// Risk is the evaluator's verdict stamped onto a transaction. Immutable
// once set.
type Risk struct {
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

// Transaction is a single payment to be scored. ID is assigned by the
// store on first save; the core never mutates a transaction after that.
type Transaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Amount          float64   `json:"amount"`
	ReceiverAddress string    `json:"receiverAddress"`
	Country         string    `json:"country"`
	Timestamp       time.Time `json:"timestamp"`
	Status          Status    `json:"status"`
	Risk            *Risk     `json:"risk,omitempty"`
}

// FrequencyRule defines how many transactions within how many hours count
// as elevated frequency for rule 4.
type FrequencyRule struct {
	Count       int     `json:"count"`
	WindowHours float64 `json:"windowHours"`
}

// Window returns the rule's rolling window as a duration.
func (r FrequencyRule) Window() time.Duration {
	return time.Duration(r.WindowHours * float64(time.Hour))
}

// Profile defaults for lazily created users.
const (
	DefaultHighAmountThreshold = 1000.0
	DefaultFrequencyCount      = 3
	DefaultFrequencyWindow     = 24.0
)

// UserProfile is a user's learned behavioral baseline. UsualHours and
// UsualCountries are sets and only ever grow; AverageAmount is the running
// mean over TransactionCount folded transactions.
type UserProfile struct {
	UserID              string        `json:"userId"`
	UsualHours          []int         `json:"usualTransactionHours"`
	UsualCountries      []string      `json:"usualCountries"`
	AverageAmount       float64       `json:"averageTransactionAmount"`
	TransactionCount    int64         `json:"transactionCount"`
	HighAmountThreshold float64       `json:"highAmountThreshold"`
	Frequency           FrequencyRule `json:"frequencyRule"`
}

// NewProfile creates a profile with all fields at defaults.
func NewProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:              userID,
		HighAmountThreshold: DefaultHighAmountThreshold,
		Frequency: FrequencyRule{
			Count:       DefaultFrequencyCount,
			WindowHours: DefaultFrequencyWindow,
		},
	}
}

// HasHour reports whether the profile has seen a transaction at the given
// hour of day.
func (p *UserProfile) HasHour(hour int) bool {
	for _, h := range p.UsualHours {
		if h == hour {
			return true
		}
	}
	return false
}

// HasCountry reports whether the profile has seen a transaction in the
// given country. Comparison is case-sensitive.
func (p *UserProfile) HasCountry(country string) bool {
	for _, c := range p.UsualCountries {
		if c == country {
			return true
		}
	}
	return false
}

// Sentinel errors surfaced by the service. Store failures are wrapped in
// ErrPersistence so handlers can map them without knowing the backend.
var (
	ErrUserNotFound = errors.New("user profile not found")
	ErrPersistence  = errors.New("persistence failure")
)

// Store is the profile-store collaborator: it owns durability for profiles
// and the transaction log. The core owns only the semantics of how profile
// fields evolve.
type Store interface {
	// GetOrCreateProfile returns the user's profile, creating it with
	// defaults on first access. The bool reports whether a profile was
	// created by this call.
	GetOrCreateProfile(ctx context.Context, userID string) (*UserProfile, bool, error)

	// GetProfile returns the user's profile, or ErrUserNotFound.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// SaveProfile durably writes the profile snapshot.
	SaveProfile(ctx context.Context, profile *UserProfile) error

	// SaveTransaction durably appends the transaction, assigning its ID.
	SaveTransaction(ctx context.Context, tx *Transaction) error

	// FindTransactionsSince returns the user's transactions with
	// Timestamp >= since.
	FindTransactionsSince(ctx context.Context, userID string, since time.Time) ([]*Transaction, error)

	// ListByUser returns the user's latest transactions, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}
