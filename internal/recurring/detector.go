// Package recurring discovers recurring-payment groups in already-persisted
// transactions.
package recurring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/recipient"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

// period is one canonical recurrence interval in days.
type period struct {
	days float64
	name string
}

// canonicalPeriods in test order; the first conforming period wins.
var canonicalPeriods = []period{
	{7, "weekly"},
	{14, "bi-weekly"},
	{30, "monthly"},
	{90, "quarterly"},
	{365, "yearly"},
}

const (
	// minOccurrences below which a cluster never forms a group.
	minOccurrences = 3
	// intervalSlackDays is the tolerance around a canonical period.
	intervalSlackDays = 3.0
	// periodConformance is the fraction of intervals that must fall within
	// the slack. Deliberately loose; tightening it changes which noisy
	// payment histories still detect.
	periodConformance = 0.70
	// inactiveAfterDays marks a group inactive when its latest occurrence is
	// older than this, relative to the recency reference.
	inactiveAfterDays = 60
	// staleAccountYears: when the whole account is older than this, recency
	// is judged against the account's own latest date instead of "now".
	staleAccountYears = 2
)

// defaultAmountTolerance is the first-fit cluster width in currency units.
var defaultAmountTolerance = decimal.NewFromInt(2)

// Detector scans persisted rows for recurring-payment groups.
type Detector struct {
	txs    store.TransactionStore
	groups store.RecurringStore

	amountTolerance decimal.Decimal
}

// NewDetector creates a Detector with the standard amount tolerance.
func NewDetector(txs store.TransactionStore, groups store.RecurringStore) *Detector {
	return &Detector{txs: txs, groups: groups, amountTolerance: defaultAmountTolerance}
}

// Detection is one discovered group and the rows supporting it.
type Detection struct {
	Group          model.RecurringGroup
	TransactionIDs []uuid.UUID
}

// Detect scans all of an account's rows up to now and returns the recurring
// groups it finds. It does not mutate the store.
func (d *Detector) Detect(ctx context.Context, accountID uuid.UUID, now time.Time) ([]Detection, error) {
	txs, err := d.txs.ListTransactions(ctx, accountID, time.Time{}, now)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	// Recency reference: "now", unless the whole account's data is stale.
	reference := now
	latest := txs[0].Date
	for _, tx := range txs {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	if latest.Before(now.AddDate(-staleAccountYears, 0, 0)) {
		reference = latest
	}

	byRecipient := make(map[string][]*model.PersistedTransaction)
	var order []string
	for _, tx := range txs {
		key := recipient.Normalize(tx.Recipient)
		if _, seen := byRecipient[key]; !seen {
			order = append(order, key)
		}
		byRecipient[key] = append(byRecipient[key], tx)
	}
	sort.Strings(order)

	var detections []Detection
	for _, key := range order {
		group := byRecipient[key]
		for _, c := range clusterByAmount(group, d.amountTolerance) {
			if len(c.rows) < minOccurrences {
				continue
			}
			det, ok := d.evaluate(accountID, group, c, reference)
			if ok {
				detections = append(detections, det)
			}
		}
	}
	return detections, nil
}

// cluster collects indices into the recipient group, anchored on the amount
// of its first member.
type cluster struct {
	anchor decimal.Decimal
	rows   []int
}

// clusterByAmount assigns each row to the first cluster whose anchor amount
// is within tolerance (first-fit, single pass; worst case O(n^2)).
func clusterByAmount(txs []*model.PersistedTransaction, tolerance decimal.Decimal) []cluster {
	var clusters []cluster
	for i, tx := range txs {
		placed := false
		for ci := range clusters {
			if tx.Amount.Sub(clusters[ci].anchor).Abs().LessThanOrEqual(tolerance) {
				clusters[ci].rows = append(clusters[ci].rows, i)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, cluster{anchor: tx.Amount, rows: []int{i}})
		}
	}
	return clusters
}

func (d *Detector) evaluate(accountID uuid.UUID, group []*model.PersistedTransaction, c cluster, reference time.Time) (Detection, bool) {
	members := make([]*model.PersistedTransaction, 0, len(c.rows))
	for _, i := range c.rows {
		members = append(members, group[i])
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Date.Before(members[j].Date) })

	intervals := make([]float64, 0, len(members)-1)
	for i := 1; i < len(members); i++ {
		intervals = append(intervals, members[i].Date.Sub(members[i-1].Date).Hours()/24)
	}

	if !matchesAnyPeriod(intervals) {
		return Detection{}, false
	}

	mean := meanOf(intervals)
	amounts := make([]decimal.Decimal, len(members))
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		amounts[i] = m.Amount
		ids[i] = m.ID
	}

	first := members[0].Date
	last := members[len(members)-1].Date
	active := !last.Before(reference.AddDate(0, 0, -inactiveAfterDays))

	g := model.RecurringGroup{
		ID:                  uuid.New(),
		AccountID:           accountID,
		Recipient:           members[0].Recipient,
		AverageAmount:       decimal.Avg(amounts[0], amounts[1:]...),
		AverageIntervalDays: mean,
		FirstDate:           first,
		LastDate:            last,
		OccurrenceCount:     len(members),
		Active:              active,
		PredictedNext:       last.AddDate(0, 0, int(math.Round(mean))),
		Confidence:          confidenceOf(intervals, mean),
	}
	return Detection{Group: g, TransactionIDs: ids}, true
}

// matchesAnyPeriod accepts the first canonical period where enough intervals
// fall within the slack.
func matchesAnyPeriod(intervals []float64) bool {
	if len(intervals) == 0 {
		return false
	}
	for _, p := range canonicalPeriods {
		within := 0
		for _, days := range intervals {
			if math.Abs(days-p.days) <= intervalSlackDays {
				within++
			}
		}
		if float64(within)/float64(len(intervals)) >= periodConformance {
			return true
		}
	}
	return false
}

// confidenceOf derives confidence from the coefficient of variation of the
// intervals: perfectly even spacing scores 1.0, noise degrades toward the
// 0.5 floor.
func confidenceOf(intervals []float64, mean float64) float64 {
	if mean == 0 {
		return 0.5
	}
	var sumSq float64
	for _, v := range intervals {
		d := v - mean
		sumSq += d * d
	}
	cv := math.Sqrt(sumSq/float64(len(intervals))) / mean
	conf := 1 - cv
	if conf < 0.5 {
		return 0.5
	}
	if conf > 1 {
		return 1
	}
	return conf
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
