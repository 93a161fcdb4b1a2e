package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

// snapshot is the JSON on-disk form of a MemoryStore, used by the CLI to
// carry state between invocations.
type snapshot struct {
	Accounts     []model.Account              `json:"accounts"`
	Transactions []model.PersistedTransaction `json:"transactions"`
	Identities   []model.RecipientIdentity    `json:"identities"`
	Rules        []model.CategoryRule         `json:"rules"`
	Groups       []model.RecurringGroup       `json:"groups"`
	Members      map[string][]uuid.UUID       `json:"members"`
	Links        []model.TransferLink         `json:"links"`
	Batches      []model.ImportBatch          `json:"batches"`
}

// LoadSnapshot reads a MemoryStore from a JSON file. A missing file yields
// an empty store.
func LoadSnapshot(path string) (*MemoryStore, error) {
	s := NewMemoryStore()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading store snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing store snapshot: %w", err)
	}

	for i := range snap.Accounts {
		a := snap.Accounts[i]
		s.accounts[a.ID] = &a
	}
	for i := range snap.Transactions {
		tx := snap.Transactions[i]
		s.transactions[tx.ID] = &tx
		byFP := s.fingerprints[tx.AccountID]
		if byFP == nil {
			byFP = make(map[string]uuid.UUID)
			s.fingerprints[tx.AccountID] = byFP
		}
		byFP[tx.Fingerprint] = tx.ID
	}
	for i := range snap.Identities {
		identity := snap.Identities[i]
		s.identities[identity.ID] = &identity
	}
	s.rules = snap.Rules
	for i := range snap.Groups {
		g := snap.Groups[i]
		s.groups[g.ID] = &g
	}
	for key, ids := range snap.Members {
		groupID, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("parsing member key %q: %w", key, err)
		}
		s.members[groupID] = ids
	}
	for i := range snap.Links {
		l := snap.Links[i]
		s.links[l.ID] = &l
	}
	for i := range snap.Batches {
		b := snap.Batches[i]
		s.batches[b.ID] = &b
	}
	return s, nil
}

// SaveSnapshot writes the store to a JSON file.
func (s *MemoryStore) SaveSnapshot(path string) error {
	s.mu.RLock()
	snap := snapshot{Members: make(map[string][]uuid.UUID, len(s.members))}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, *a)
	}
	for _, tx := range s.transactions {
		snap.Transactions = append(snap.Transactions, *tx)
	}
	for _, identity := range s.identities {
		snap.Identities = append(snap.Identities, *identity)
	}
	snap.Rules = append(snap.Rules, s.rules...)
	for _, g := range s.groups {
		snap.Groups = append(snap.Groups, *g)
	}
	for groupID, ids := range s.members {
		snap.Members[groupID.String()] = ids
	}
	for _, l := range s.links {
		snap.Links = append(snap.Links, *l)
	}
	for _, b := range s.batches {
		snap.Batches = append(snap.Batches, *b)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling store snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing store snapshot: %w", err)
	}
	return nil
}
