// Package transfer pairs opposite-sign transactions across accounts into
// inter-account transfer links.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

// windowDays is the maximum date distance between the two sides of a pair.
const windowDays = 5

var (
	// ErrSameTransaction rejects linking a transaction to itself.
	ErrSameTransaction = errors.New("transfer sides must be different transactions")
	// ErrSameAccount rejects pairs within one account.
	ErrSameAccount = errors.New("transfer sides must belong to different accounts")
	// ErrSameSign rejects pairs that are not one outgoing and one incoming.
	ErrSameSign = errors.New("transfer requires one negative and one positive transaction")
	// ErrMagnitudeMismatch rejects pairs whose amounts are not exact mirrors.
	ErrMagnitudeMismatch = errors.New("transfer amounts must have identical magnitude")
	// ErrAlreadyLinked rejects transactions that already participate in a link.
	ErrAlreadyLinked = errors.New("transaction is already part of a transfer link")
)

// Matcher finds candidate pairs and creates validated links.
type Matcher struct {
	txs   store.TransactionStore
	links store.TransferStore
}

// NewMatcher creates a Matcher.
func NewMatcher(txs store.TransactionStore, links store.TransferStore) *Matcher {
	return &Matcher{txs: txs, links: links}
}

// Candidate is a scored potential transfer pair.
type Candidate struct {
	From       *model.PersistedTransaction
	To         *model.PersistedTransaction
	Confidence float64
}

// FindCandidates scans the accounts' negative transactions in [from,to] and
// pairs each with the best unlinked positive transaction of identical
// magnitude in a different account within the date window. Each side it
// queries is a narrow amount/date slice, never a full cross join. Only pairs
// at or above minConfidence are returned, strongest first.
func (m *Matcher) FindCandidates(ctx context.Context, accountIDs []uuid.UUID, from, to time.Time, minConfidence float64) ([]Candidate, error) {
	inScope := make(map[uuid.UUID]bool, len(accountIDs))
	for _, id := range accountIDs {
		inScope[id] = true
	}

	var candidates []Candidate
	claimed := make(map[uuid.UUID]bool)

	for _, accountID := range accountIDs {
		txs, err := m.txs.ListTransactions(ctx, accountID, from, to)
		if err != nil {
			return nil, fmt.Errorf("listing transactions: %w", err)
		}
		for _, tx := range txs {
			if !tx.Amount.IsNegative() || claimed[tx.ID] {
				continue
			}
			linked, err := m.links.TransactionLinked(ctx, tx.ID)
			if err != nil {
				return nil, err
			}
			if linked {
				continue
			}

			matches, err := m.txs.FindByAmountInWindow(ctx, accountID, tx.Amount.Neg(),
				tx.Date.AddDate(0, 0, -windowDays), tx.Date.AddDate(0, 0, windowDays))
			if err != nil {
				return nil, fmt.Errorf("querying counterpart slice: %w", err)
			}

			var best *Candidate
			for _, match := range matches {
				if !inScope[match.AccountID] || claimed[match.ID] {
					continue
				}
				linked, err := m.links.TransactionLinked(ctx, match.ID)
				if err != nil {
					return nil, err
				}
				if linked {
					continue
				}
				conf := pairConfidence(tx, match)
				if conf < minConfidence {
					continue
				}
				if best == nil || conf > best.Confidence {
					best = &Candidate{From: tx, To: match, Confidence: conf}
				}
			}
			if best != nil {
				claimed[best.From.ID] = true
				claimed[best.To.ID] = true
				candidates = append(candidates, *best)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}

// CreateLink validates the pair and persists a link. Every precondition is
// checked before any mutation.
func (m *Matcher) CreateLink(ctx context.Context, fromID, toID uuid.UUID, autoDetected bool, confidence float64) (*model.TransferLink, error) {
	if fromID == toID {
		return nil, ErrSameTransaction
	}

	from, err := m.txs.GetTransaction(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("loading from side: %w", err)
	}
	to, err := m.txs.GetTransaction(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("loading to side: %w", err)
	}

	if from.AccountID == to.AccountID {
		return nil, ErrSameAccount
	}
	if !from.Amount.IsNegative() || !to.Amount.IsPositive() {
		return nil, ErrSameSign
	}
	if !from.Amount.Neg().Equal(to.Amount) {
		return nil, ErrMagnitudeMismatch
	}
	for _, id := range []uuid.UUID{fromID, toID} {
		linked, err := m.links.TransactionLinked(ctx, id)
		if err != nil {
			return nil, err
		}
		if linked {
			return nil, ErrAlreadyLinked
		}
	}

	link := &model.TransferLink{
		ID:                uuid.New(),
		FromTransactionID: fromID,
		ToTransactionID:   toID,
		Amount:            to.Amount,
		Date:              from.Date,
		AutoDetected:      autoDetected,
		Confidence:        confidence,
	}
	if err := m.links.CreateTransferLink(ctx, link); err != nil {
		return nil, fmt.Errorf("persisting link: %w", err)
	}
	return link, nil
}

// pairConfidence scores a pair: a date-proximity base falling linearly from
// 1.0 at zero days to 0.5 at the window edge, a same-day bonus, and a
// bounded text-overlap bonus, capped at 1.0.
func pairConfidence(from, to *model.PersistedTransaction) float64 {
	days := math.Abs(from.Date.Sub(to.Date).Hours() / 24)
	conf := 1.0 - 0.5*(days/windowDays)
	if days == 0 {
		conf += 0.2
	}
	conf += 0.15 * textOverlap(from, to)
	if conf > 1 {
		conf = 1
	}
	return conf
}

// textOverlap is the token Jaccard index of the two sides' recipient and
// purpose text.
func textOverlap(a, b *model.PersistedTransaction) float64 {
	ta := tokens(a.Recipient + " " + a.Purpose)
	tb := tokens(b.Recipient + " " + b.Purpose)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	union := len(tb)
	for tok := range ta {
		if tb[tok] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[f] = true
	}
	return out
}
