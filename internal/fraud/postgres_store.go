package fraud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/driftpay/fraudwatch/internal/idgen"
	"github.com/lib/pq"
)

// PostgresStore persists profiles and the transaction log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they don't exist. cmd/migrate owns the
// canonical schema; this keeps demo setups working without goose.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS user_profiles (
			user_id               TEXT PRIMARY KEY,
			usual_hours           INT[] NOT NULL DEFAULT '{}',
			usual_countries       TEXT[] NOT NULL DEFAULT '{}',
			average_amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
			transaction_count     BIGINT NOT NULL DEFAULT 0,
			high_amount_threshold DOUBLE PRECISION NOT NULL DEFAULT 1000,
			frequency_count       INT NOT NULL DEFAULT 3,
			frequency_window_hours DOUBLE PRECISION NOT NULL DEFAULT 24,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id               VARCHAR(36) PRIMARY KEY,
			user_id          TEXT NOT NULL,
			amount           DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
			receiver_address TEXT NOT NULL,
			country          TEXT NOT NULL,
			ts               TIMESTAMPTZ NOT NULL,
			status           VARCHAR(10) NOT NULL CHECK (status IN ('pending', 'completed', 'flagged', 'rejected')),
			risk_score       INT NOT NULL DEFAULT 0 CHECK (risk_score >= 0),
			risk_factors     TEXT[] NOT NULL DEFAULT '{}',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_user_ts
			ON transactions (user_id, ts DESC);
	`)
	return err
}

func (s *PostgresStore) GetOrCreateProfile(ctx context.Context, userID string) (*UserProfile, bool, error) {
	// Insert-if-absent first so concurrent first evaluations of the same
	// user converge on a single row.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}
	inserted, _ := res.RowsAffected()

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return profile, inserted > 0, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	var hours pq.Int64Array
	var countries pq.StringArray

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, usual_hours, usual_countries, average_amount,
		       transaction_count, high_amount_threshold,
		       frequency_count, frequency_window_hours
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&p.UserID,
		&hours,
		&countries,
		&p.AverageAmount,
		&p.TransactionCount,
		&p.HighAmountThreshold,
		&p.Frequency.Count,
		&p.Frequency.WindowHours,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	p.UsualHours = make([]int, len(hours))
	for i, h := range hours {
		p.UsualHours[i] = int(h)
	}
	p.UsualCountries = []string(countries)
	return &p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, profile *UserProfile) error {
	hours := make(pq.Int64Array, len(profile.UsualHours))
	for i, h := range profile.UsualHours {
		hours[i] = int64(h)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (
			user_id, usual_hours, usual_countries, average_amount,
			transaction_count, high_amount_threshold,
			frequency_count, frequency_window_hours, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			usual_hours            = EXCLUDED.usual_hours,
			usual_countries        = EXCLUDED.usual_countries,
			average_amount         = EXCLUDED.average_amount,
			transaction_count      = EXCLUDED.transaction_count,
			high_amount_threshold  = EXCLUDED.high_amount_threshold,
			frequency_count        = EXCLUDED.frequency_count,
			frequency_window_hours = EXCLUDED.frequency_window_hours,
			updated_at             = NOW()
	`,
		profile.UserID,
		hours,
		pq.StringArray(profile.UsualCountries),
		profile.AverageAmount,
		profile.TransactionCount,
		profile.HighAmountThreshold,
		profile.Frequency.Count,
		profile.Frequency.WindowHours,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTransaction(ctx context.Context, tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = idgen.WithPrefix("txn_")
	}

	var score int
	var factors pq.StringArray
	if tx.Risk != nil {
		score = tx.Risk.Score
		factors = pq.StringArray(tx.Risk.Factors)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, receiver_address, country, ts, status, risk_score, risk_factors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		tx.ID,
		tx.UserID,
		tx.Amount,
		tx.ReceiverAddress,
		tx.Country,
		tx.Timestamp,
		string(tx.Status),
		score,
		factors,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindTransactionsSince(ctx context.Context, userID string, since time.Time) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, receiver_address, country, ts, status, risk_score, risk_factors
		FROM transactions
		WHERE user_id = $1 AND ts >= $2
		ORDER BY ts DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, receiver_address, country, ts, status, risk_score, risk_factors
		FROM transactions
		WHERE user_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		var tx Transaction
		var status string
		var score int
		var factors pq.StringArray

		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.ReceiverAddress,
			&tx.Country,
			&tx.Timestamp,
			&status,
			&score,
			&factors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Status = Status(status)
		tx.Risk = &Risk{Score: score, Factors: []string(factors)}
		result = append(result, &tx)
	}
	return result, rows.Err()
}
