package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

// MemoryStore implements Store with mutex-guarded maps. It enforces the same
// per-account fingerprint uniqueness a database constraint would.
type MemoryStore struct {
	mu sync.RWMutex

	accounts     map[uuid.UUID]*model.Account
	transactions map[uuid.UUID]*model.PersistedTransaction
	identities   map[uuid.UUID]*model.RecipientIdentity
	rules        []model.CategoryRule
	groups       map[uuid.UUID]*model.RecurringGroup
	members      map[uuid.UUID][]uuid.UUID
	links        map[uuid.UUID]*model.TransferLink
	batches      map[uuid.UUID]*model.ImportBatch

	fingerprints map[uuid.UUID]map[string]uuid.UUID // account -> fingerprint -> tx
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[uuid.UUID]*model.Account),
		transactions: make(map[uuid.UUID]*model.PersistedTransaction),
		identities:   make(map[uuid.UUID]*model.RecipientIdentity),
		groups:       make(map[uuid.UUID]*model.RecurringGroup),
		members:      make(map[uuid.UUID][]uuid.UUID),
		links:        make(map[uuid.UUID]*model.TransferLink),
		batches:      make(map[uuid.UUID]*model.ImportBatch),
		fingerprints: make(map[uuid.UUID]map[string]uuid.UUID),
	}
}

// --- accounts ---

func (s *MemoryStore) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Name == account.Name {
			return fmt.Errorf("account %q: %w", account.Name, ErrConflict)
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id uuid.UUID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetAccountByName(_ context.Context, name string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", name, ErrNotFound)
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- transactions ---

func (s *MemoryStore) CreateTransaction(_ context.Context, tx *model.PersistedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byFP := s.fingerprints[tx.AccountID]
	if byFP == nil {
		byFP = make(map[string]uuid.UUID)
		s.fingerprints[tx.AccountID] = byFP
	}
	if _, exists := byFP[tx.Fingerprint]; exists {
		return ErrDuplicateFingerprint
	}

	cp := *tx
	s.transactions[tx.ID] = &cp
	byFP[tx.Fingerprint] = tx.ID
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*model.PersistedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID uuid.UUID, from, to time.Time) ([]*model.PersistedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.PersistedTransaction
	for _, tx := range s.transactions {
		if tx.AccountID != accountID {
			continue
		}
		if !from.IsZero() && tx.Date.Before(from) {
			continue
		}
		if !to.IsZero() && tx.Date.After(to) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) ListFingerprints(_ context.Context, accountID uuid.UUID) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.fingerprints[accountID]))
	for fp := range s.fingerprints[accountID] {
		out[fp] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) FindByAmountInWindow(_ context.Context, excludeAccount uuid.UUID, amount decimal.Decimal, from, to time.Time) ([]*model.PersistedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.PersistedTransaction
	for _, tx := range s.transactions {
		if tx.AccountID == excludeAccount {
			continue
		}
		if !tx.Amount.Equal(amount) {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) ReassignIdentity(_ context.Context, fromIdentity, toIdentity uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.transactions {
		if tx.RecipientIdentityID != nil && *tx.RecipientIdentityID == fromIdentity {
			id := toIdentity
			tx.RecipientIdentityID = &id
			n++
		}
	}
	return n, nil
}

// --- identities ---

func (s *MemoryStore) CreateIdentity(_ context.Context, identity *model.RecipientIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.identities {
		if existing.NormalizedName == identity.NormalizedName {
			return fmt.Errorf("identity %q: %w", identity.NormalizedName, ErrConflict)
		}
	}
	cp := cloneIdentity(identity)
	s.identities[identity.ID] = cp
	return nil
}

func (s *MemoryStore) GetIdentity(_ context.Context, id uuid.UUID) (*model.RecipientIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", id, ErrNotFound)
	}
	return cloneIdentity(identity), nil
}

func (s *MemoryStore) ListIdentities(_ context.Context) ([]*model.RecipientIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.RecipientIdentity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, cloneIdentity(identity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedName < out[j].NormalizedName })
	return out, nil
}

func (s *MemoryStore) UpdateIdentity(_ context.Context, identity *model.RecipientIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.ID]; !ok {
		return fmt.Errorf("identity %s: %w", identity.ID, ErrNotFound)
	}
	s.identities[identity.ID] = cloneIdentity(identity)
	return nil
}

func (s *MemoryStore) DeleteIdentity(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[id]; !ok {
		return fmt.Errorf("identity %s: %w", id, ErrNotFound)
	}
	delete(s.identities, id)
	return nil
}

// --- category rules ---

func (s *MemoryStore) ListCategoryRules(_ context.Context) ([]model.CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CategoryRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

func (s *MemoryStore) PutCategoryRules(_ context.Context, rules []model.CategoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make([]model.CategoryRule, len(rules))
	copy(s.rules, rules)
	return nil
}

// --- recurring groups ---

func (s *MemoryStore) ListRecurringGroups(_ context.Context, accountID uuid.UUID) ([]*model.RecurringGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.RecurringGroup
	for _, g := range s.groups {
		if g.AccountID == accountID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Recipient < out[j].Recipient })
	return out, nil
}

func (s *MemoryStore) CreateRecurringGroup(_ context.Context, group *model.RecurringGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *group
	s.groups[group.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateRecurringGroup(_ context.Context, group *model.RecurringGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		return fmt.Errorf("recurring group %s: %w", group.ID, ErrNotFound)
	}
	cp := *group
	s.groups[group.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteRecurringGroup(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("recurring group %s: %w", id, ErrNotFound)
	}
	delete(s.groups, id)
	delete(s.members, id)
	return nil
}

func (s *MemoryStore) SetRecurringMembers(_ context.Context, groupID uuid.UUID, txIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, len(txIDs))
	copy(ids, txIDs)
	s.members[groupID] = ids
	return nil
}

func (s *MemoryStore) RecurringMembers(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, len(s.members[groupID]))
	copy(ids, s.members[groupID])
	return ids, nil
}

// --- transfer links ---

func (s *MemoryStore) CreateTransferLink(_ context.Context, link *model.TransferLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *MemoryStore) ListTransferLinks(_ context.Context) ([]*model.TransferLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.TransferLink, 0, len(s.links))
	for _, l := range s.links {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) TransactionLinked(_ context.Context, txID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.links {
		if l.FromTransactionID == txID || l.ToTransactionID == txID {
			return true, nil
		}
	}
	return false, nil
}

// --- import batches ---

func (s *MemoryStore) CreateImportBatch(_ context.Context, batch *model.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateImportBatch(_ context.Context, batch *model.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; !ok {
		return fmt.Errorf("import batch %s: %w", batch.ID, ErrNotFound)
	}
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

func cloneIdentity(identity *model.RecipientIdentity) *model.RecipientIdentity {
	cp := *identity
	cp.Aliases = append([]string(nil), identity.Aliases...)
	return &cp
}
