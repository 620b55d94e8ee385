package fraud

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driftpay/fraudwatch/internal/idgen"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu           sync.RWMutex
	profiles     map[string]*UserProfile
	transactions map[string][]*Transaction // userID -> transactions, append order
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:     make(map[string]*UserProfile),
		transactions: make(map[string][]*Transaction),
	}
}

func (s *MemoryStore) GetOrCreateProfile(_ context.Context, userID string) (*UserProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		return copyProfile(p), false, nil
	}
	p := NewProfile(userID)
	s.profiles[userID] = p
	return copyProfile(p), true, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyProfile(p), nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, profile *UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func (s *MemoryStore) SaveTransaction(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = idgen.WithPrefix("txn_")
	}
	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], copyTransaction(tx))
	return nil
}

func (s *MemoryStore) FindTransactionsSince(_ context.Context, userID string, since time.Time) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, tx := range s.transactions[userID] {
		if !tx.Timestamp.Before(since) {
			out = append(out, copyTransaction(tx))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.transactions[userID]
	if len(all) == 0 {
		return nil, nil
	}

	// Newest first, up to limit. Entries are stored in append order and
	// timestamps can arrive out of order, so sort a copy by timestamp.
	sorted := make([]*Transaction, len(all))
	for i, tx := range all {
		sorted[i] = copyTransaction(tx)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func copyProfile(p *UserProfile) *UserProfile {
	cp := *p
	cp.UsualHours = append([]int(nil), p.UsualHours...)
	cp.UsualCountries = append([]string(nil), p.UsualCountries...)
	return &cp
}

func copyTransaction(tx *Transaction) *Transaction {
	cp := *tx
	if tx.Risk != nil {
		risk := *tx.Risk
		risk.Factors = append([]string(nil), tx.Risk.Factors...)
		cp.Risk = &risk
	}
	return &cp
}
