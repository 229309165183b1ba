// Package reconcile compares the two independent counts of an area.
// It has no I/O; the comparison service loads the inputs and persists the result.
package reconcile

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

// Key identifies one counted article.
type Key struct {
	SKU        string
	ItemNumber string
}

// Line is the aggregated result of one key.
type Line struct {
	Key
	Description        string
	FirstCount         int
	SecondCount        int
	Variance           int
	VariancePercentage float64
}

func (l Line) Divergent() bool { return l.Variance != 0 }

type Result struct {
	Lines        []Line // every key, sorted
	Status       model.ComparisonStatus
	VarianceRate float64
}

// Divergent returns the lines that produce a discrepancy, in output order.
func (r Result) Divergent() []Line {
	var out []Line
	for _, l := range r.Lines {
		if l.Divergent() {
			out = append(out, l)
		}
	}
	return out
}

// Order returns the two assignments as (first, second): earliest AssignedAt first,
// ties broken by id.
func Order(a, b model.Assignment) (model.Assignment, model.Assignment) {
	if b.AssignedAt.Before(a.AssignedAt) ||
		(b.AssignedAt.Equal(a.AssignedAt) && b.ID.String() < a.ID.String()) {
		return b, a
	}
	return a, b
}

type tally struct {
	description string
	qty         int
}

func aggregate(items []model.CountItem) map[Key]*tally {
	out := make(map[Key]*tally)
	for _, it := range items {
		k := Key{SKU: it.SKU, ItemNumber: it.ItemNumber}
		t, ok := out[k]
		if !ok {
			t = &tally{}
			out[k] = t
		}
		t.qty += it.Quantity
		if t.description == "" {
			t.description = it.Description
		}
	}
	return out
}

// Compare reconciles the items counted under the first and second assignment.
// A key counted on one side only counts 0 on the other.
func Compare(first, second []model.CountItem) Result {
	a := aggregate(first)
	b := aggregate(second)

	keys := make([]Key, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SKU != keys[j].SKU {
			return keys[i].SKU < keys[j].SKU
		}
		return keys[i].ItemNumber < keys[j].ItemNumber
	})

	res := Result{Lines: make([]Line, 0, len(keys)), Status: model.ComparisonMatched}
	divergent := 0
	for _, k := range keys {
		l := Line{Key: k}
		if t, ok := a[k]; ok {
			l.FirstCount = t.qty
			l.Description = t.description
		}
		if t, ok := b[k]; ok {
			l.SecondCount = t.qty
			if l.Description == "" {
				l.Description = t.description
			}
		}
		l.Variance = l.FirstCount - l.SecondCount
		l.VariancePercentage = VariancePercentage(l.FirstCount, l.SecondCount)
		if l.Divergent() {
			divergent++
		}
		res.Lines = append(res.Lines, l)
	}

	if divergent > 0 {
		res.Status = model.ComparisonDiscrepancy
		res.VarianceRate = decimal.NewFromInt(int64(divergent)).
			Div(decimal.NewFromInt(int64(len(keys)))).
			Round(4).
			InexactFloat64()
	}
	return res
}

// VariancePercentage is (first-second)/first*100 rounded to two decimals.
// With first == 0 it is 0 when second is also 0, otherwise -100 (the second count
// found stock the first did not).
func VariancePercentage(first, second int) float64 {
	variance := first - second
	if first == 0 {
		switch {
		case variance == 0:
			return 0
		case variance > 0:
			return 100
		default:
			return -100
		}
	}
	return decimal.NewFromInt(int64(variance)).
		Div(decimal.NewFromInt(int64(first))).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// Discrepancies turns the divergent lines of r into OPEN records of comparisonID.
func Discrepancies(r Result, comparisonID uuid.UUID) []model.Discrepancy {
	lines := r.Divergent()
	out := make([]model.Discrepancy, 0, len(lines))
	for _, l := range lines {
		out = append(out, model.Discrepancy{
			ID:                 uuid.New(),
			ComparisonID:       comparisonID,
			ItemNumber:         l.ItemNumber,
			SKU:                l.SKU,
			Description:        l.Description,
			FirstCount:         l.FirstCount,
			SecondCount:        l.SecondCount,
			Variance:           l.Variance,
			VariancePercentage: l.VariancePercentage,
			Status:             model.DiscrepancyOpen,
		})
	}
	return out
}
