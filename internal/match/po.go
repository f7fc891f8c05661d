package match

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/money"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// Score thresholds. Overridable for deployments with looser purchasing
// discipline; the defaults reflect the usual NF-e vs PO drift.
const (
	LinkThreshold    = 50
	PartialThreshold = 30
)

// Result is the outcome of matching one record against open purchase orders
type Result struct {
	Status     model.POStatus
	OrderID    string
	Score      int
	Breakdown  model.ScoreBreakdown
	Candidates []model.MatchCandidate
}

// POMatcher scores open purchase orders against a fiscal record
type POMatcher struct {
	orders store.PurchaseOrders
	cfg    *config.Config
	log    *zap.Logger
}

// NewPOMatcher creates a purchase order matcher
func NewPOMatcher(orders store.PurchaseOrders, cfg *config.Config, log *zap.Logger) *POMatcher {
	return &POMatcher{orders: orders, cfg: cfg, log: log}
}

// Match finds the best billable purchase order for the record. A score at
// or above LinkThreshold links the order; between PartialThreshold and
// LinkThreshold it links with a review flag; below that no link is made.
func (m *POMatcher) Match(ctx context.Context, rec *model.FiscalRecord) (*Result, error) {
	if !m.cfg.Matching.EnablePOMatching || rec.SupplierID == "" {
		return &Result{Status: model.PONotApplicable}, nil
	}

	candidates, err := m.candidates(ctx, rec)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{Status: model.PONotFound}, nil
	}

	tolerance := float64(m.cfg.Matching.POTolerancePercent) / 100.0

	var best *store.PurchaseOrder
	var bestBreakdown model.ScoreBreakdown
	bestScore := -1
	scored := make([]model.MatchCandidate, 0, len(candidates))

	for _, po := range candidates {
		breakdown := m.score(rec, po, tolerance)
		total := breakdown.Total()
		scored = append(scored, model.MatchCandidate{
			TargetID:  po.ID,
			Score:     total,
			Breakdown: breakdown,
		})
		// Strict greater keeps the first of equal-scoring candidates
		if total > bestScore {
			best = po
			bestScore = total
			bestBreakdown = breakdown
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	result := &Result{
		Score:      bestScore,
		Breakdown:  bestBreakdown,
		Candidates: scored,
	}
	switch {
	case bestScore >= LinkThreshold:
		result.Status = model.POLinked
		result.OrderID = best.ID
	case bestScore >= PartialThreshold:
		result.Status = model.POPartialMatch
		result.OrderID = best.ID
	default:
		result.Status = model.PONotFound
	}

	m.log.Info("purchase order matching finished",
		zap.String("record", rec.ID),
		zap.String("status", string(result.Status)),
		zap.Int("score", bestScore),
		zap.Int("candidates", len(candidates)))
	return result, nil
}

// Suggest returns the top scored candidates for manual review, regardless
// of threshold.
func (m *POMatcher) Suggest(ctx context.Context, rec *model.FiscalRecord, limit int) ([]model.MatchCandidate, error) {
	res, err := m.Match(ctx, rec)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(res.Candidates) > limit {
		res.Candidates = res.Candidates[:limit]
	}
	return res.Candidates, nil
}

func (m *POMatcher) candidates(ctx context.Context, rec *model.FiscalRecord) ([]*store.PurchaseOrder, error) {
	window := time.Duration(m.cfg.Matching.PODateRangeDays) * 24 * time.Hour
	anchor := rec.IssueDate
	if anchor.IsZero() {
		anchor = rec.ReceivedAt
	}

	orders, err := m.orders.BySupplier(ctx, rec.SupplierID, anchor.Add(-window), anchor.Add(window))
	if err != nil {
		return nil, err
	}

	billable := orders[:0]
	for _, po := range orders {
		if po.Billable() {
			billable = append(billable, po)
		}
	}
	return billable, nil
}

func (m *POMatcher) score(rec *model.FiscalRecord, po *store.PurchaseOrder, tolerance float64) model.ScoreBreakdown {
	var b model.ScoreBreakdown

	b.Value = valueScore(rec.Totals.Gross, po.Total, tolerance)

	docLines := len(rec.Items)
	delta := docLines - len(po.Items)
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta == 0:
		b.LineCount = 20
	case delta <= 2:
		b.LineCount = 10
	}

	b.ItemOverlap = overlapScore(rec.Items, po.Items)

	if !rec.IssueDate.IsZero() && !po.Date.IsZero() {
		days := int(math.Abs(rec.IssueDate.Sub(po.Date).Hours()) / 24)
		switch {
		case days <= 7:
			b.DateGap = 10
		case days <= 14:
			b.DateGap = 5
		}
	}

	return b
}

func valueScore(docTotal, poTotal decimal.Decimal, tolerance float64) int {
	if poTotal.IsZero() {
		return 0
	}
	switch {
	case money.WithinPercent(docTotal, poTotal, tolerance):
		return 30
	case money.WithinPercent(docTotal, poTotal, tolerance*2):
		return 15
	default:
		return 0
	}
}

// overlapScore is proportional to the fraction of document lines whose
// resolved item code appears anywhere in the order's lines.
func overlapScore(lines []model.LineItem, poItems []store.POItem) int {
	if len(lines) == 0 {
		return 0
	}
	poCodes := make(map[string]bool, len(poItems))
	for _, it := range poItems {
		if it.ItemCode != "" {
			poCodes[it.ItemCode] = true
		}
	}
	matched := 0
	for _, line := range lines {
		if line.ItemCode != "" && poCodes[line.ItemCode] {
			matched++
		}
	}
	return matched * 40 / len(lines)
}
