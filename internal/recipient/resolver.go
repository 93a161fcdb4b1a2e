// Package recipient maps free-text counterparty names to stable identities,
// folding near-duplicate spellings together.
package recipient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

// DefaultSimilarity is the ratio at or above which a new spelling becomes an
// alias of an existing identity.
const DefaultSimilarity = 0.85

var (
	// ErrSameIdentity rejects merging an identity into itself.
	ErrSameIdentity = errors.New("cannot merge an identity into itself")
)

// Repointer re-targets transaction identity references during a merge.
type Repointer interface {
	ReassignIdentity(ctx context.Context, fromIdentity, toIdentity uuid.UUID) (int, error)
}

// Resolver resolves raw names against the identity store.
type Resolver struct {
	identities store.IdentityStore
	txs        Repointer
	threshold  float64
}

// NewResolver creates a Resolver. threshold <= 0 selects DefaultSimilarity.
func NewResolver(identities store.IdentityStore, txs Repointer, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}
	return &Resolver{identities: identities, txs: txs, threshold: threshold}
}

// Normalize lower-cases, trims, and collapses inner whitespace.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Resolve returns the identity for rawName, creating or extending one as
// needed. An exact normalized match wins outright; otherwise the best
// similarity over every identity's normalized name and aliases decides
// between alias registration and a fresh identity. The returned identity
// reflects the incremented transaction count.
func (r *Resolver) Resolve(ctx context.Context, rawName string) (*model.RecipientIdentity, error) {
	normalized := Normalize(rawName)
	if normalized == "" {
		return nil, errors.New("empty recipient name")
	}

	identities, err := r.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}

	var (
		best      *model.RecipientIdentity
		bestRatio float64
	)
	for _, identity := range identities {
		if identity.NormalizedName == normalized || containsString(identity.Aliases, normalized) {
			identity.TransactionCount++
			if err := r.identities.UpdateIdentity(ctx, identity); err != nil {
				return nil, fmt.Errorf("updating identity: %w", err)
			}
			return identity, nil
		}
		ratio := similarity(normalized, identity.NormalizedName)
		for _, alias := range identity.Aliases {
			if ar := similarity(normalized, alias); ar > ratio {
				ratio = ar
			}
		}
		if ratio > bestRatio {
			bestRatio = ratio
			best = identity
		}
	}

	if best != nil && bestRatio >= r.threshold {
		best.Aliases = append(best.Aliases, normalized)
		best.TransactionCount++
		if err := r.identities.UpdateIdentity(ctx, best); err != nil {
			return nil, fmt.Errorf("updating identity: %w", err)
		}
		return best, nil
	}

	identity := &model.RecipientIdentity{
		ID:               uuid.New(),
		DisplayName:      strings.TrimSpace(rawName),
		NormalizedName:   normalized,
		TransactionCount: 1,
	}
	if err := r.identities.CreateIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}
	return identity, nil
}

// Merge folds mergeID into keepID: aliases and display name move to the
// keeper, referencing transactions are re-pointed, counts are summed, and
// the loser is deleted. Fails without mutation on missing or identical ids.
func (r *Resolver) Merge(ctx context.Context, keepID, mergeID uuid.UUID) (*model.RecipientIdentity, error) {
	if keepID == mergeID {
		return nil, ErrSameIdentity
	}

	keep, err := r.identities.GetIdentity(ctx, keepID)
	if err != nil {
		return nil, fmt.Errorf("loading keeper: %w", err)
	}
	loser, err := r.identities.GetIdentity(ctx, mergeID)
	if err != nil {
		return nil, fmt.Errorf("loading merge target: %w", err)
	}

	for _, alias := range append([]string{loser.NormalizedName, Normalize(loser.DisplayName)}, loser.Aliases...) {
		if alias == "" || alias == keep.NormalizedName || containsString(keep.Aliases, alias) {
			continue
		}
		keep.Aliases = append(keep.Aliases, alias)
	}
	keep.TransactionCount += loser.TransactionCount

	if _, err := r.txs.ReassignIdentity(ctx, mergeID, keepID); err != nil {
		return nil, fmt.Errorf("re-pointing transactions: %w", err)
	}
	if err := r.identities.UpdateIdentity(ctx, keep); err != nil {
		return nil, fmt.Errorf("updating keeper: %w", err)
	}
	if err := r.identities.DeleteIdentity(ctx, mergeID); err != nil {
		return nil, fmt.Errorf("deleting merged identity: %w", err)
	}
	return keep, nil
}

// similarity is an edit-distance ratio in [0,1]: 1 for equal strings, 0 for
// nothing in common.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return 1 - float64(dist)/float64(longest)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
