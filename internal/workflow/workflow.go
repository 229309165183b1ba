// Package workflow holds the status state machines of the stock-count entities.
package workflow

import (
	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/model"
)

// Machine is an explicit edge table. A status missing from the table is terminal.
type Machine[S ~string] struct {
	entity string
	edges  map[S][]S
}

func newMachine[S ~string](entity string, edges map[S][]S) *Machine[S] {
	return &Machine[S]{entity: entity, edges: edges}
}

// Can reports whether from -> to is an edge. Self-transitions are never edges.
func (m *Machine[S]) Can(from, to S) bool {
	for _, next := range m.edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns an InvalidTransition error unless from -> to is an edge.
func (m *Machine[S]) Check(from, to S) error {
	if !m.Can(from, to) {
		return apierror.InvalidTransition(m.entity, string(from), string(to))
	}
	return nil
}

// Terminal reports whether no edge leaves s.
func (m *Machine[S]) Terminal(s S) bool {
	return len(m.edges[s]) == 0
}

// Known reports whether s is a status of this machine.
func (m *Machine[S]) Known(s S) bool {
	if _, ok := m.edges[s]; ok {
		return true
	}
	for _, targets := range m.edges {
		for _, t := range targets {
			if t == s {
				return true
			}
		}
	}
	return false
}

var StockCount = newMachine("stock count", map[model.StockCountStatus][]model.StockCountStatus{
	model.StockCountCreated:         {model.StockCountInProgress, model.StockCountCancelled},
	model.StockCountInProgress:      {model.StockCountPendingApproval, model.StockCountCancelled},
	model.StockCountPendingApproval: {model.StockCountApproved, model.StockCountCancelled},
})

var Area = newMachine("area", map[model.AreaStatus][]model.AreaStatus{
	model.AreaNotStarted:        {model.AreaInProgress},
	model.AreaInProgress:        {model.AreaPendingComparison},
	model.AreaPendingComparison: {model.AreaPendingApproval},
	model.AreaPendingApproval:   {model.AreaApproved, model.AreaRejected},
})

var Assignment = newMachine("assignment", map[model.AssignmentStatus][]model.AssignmentStatus{
	model.AssignmentAssigned:   {model.AssignmentInProgress},
	model.AssignmentInProgress: {model.AssignmentSubmitted},
	model.AssignmentSubmitted:  {model.AssignmentApproved, model.AssignmentRejected},
})

var Session = newMachine("count session", map[model.SessionStatus][]model.SessionStatus{
	model.SessionActive: {model.SessionPaused, model.SessionCompleted},
	model.SessionPaused: {model.SessionActive, model.SessionCompleted},
})

var Comparison = newMachine("comparison", map[model.ComparisonStatus][]model.ComparisonStatus{
	model.ComparisonPending: {model.ComparisonMatched, model.ComparisonDiscrepancy},
})

var Discrepancy = newMachine("discrepancy", map[model.DiscrepancyStatus][]model.DiscrepancyStatus{
	model.DiscrepancyOpen:     {model.DiscrepancyResolved},
	model.DiscrepancyResolved: {model.DiscrepancyApproved},
})
