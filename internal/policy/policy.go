// Package policy evaluates the per-resource authorization table.
//
// Every resource carries an ordered list of rules. A rule grants a set of actions to
// a principal class: either a set of groups or the owner of the record. A request is
// allowed iff some rule matches; there is no inheritance across related records.
package policy

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/metrics"
)

type Action string

const (
	Create Action = "create"
	Read   Action = "read"
	Update Action = "update"
	Delete Action = "delete"
)

var crud = []Action{Create, Read, Update, Delete}

type Resource string

const (
	User         Resource = "User"
	StockCount   Resource = "StockCount"
	Area         Resource = "Area"
	Assignment   Resource = "Assignment"
	CountSession Resource = "CountSession"
	CountItem    Resource = "CountItem"
	Comparison   Resource = "Comparison"
	Discrepancy  Resource = "Discrepancy"
)

const (
	GroupAdmin      = "ADMIN"
	GroupSupervisor = "SUPERVISOR"
	GroupCounter    = "COUNTER"
)

// Actor is the identity a request runs as.
type Actor struct {
	ID     uuid.UUID
	Groups []string
	system bool
}

// System is the internal actor used for derived transitions. It bypasses the table.
func System() Actor { return Actor{system: true} }

func (a Actor) IsSystem() bool { return a.system }

func (a Actor) InGroup(group string) bool {
	for _, g := range a.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Rule grants Actions to members of Groups, or to the record owner when Owner is set.
type Rule struct {
	Groups  []string
	Owner   bool
	Actions []Action
}

func (r Rule) grants(act Action) bool {
	for _, a := range r.Actions {
		if a == act {
			return true
		}
	}
	return false
}

type Table map[Resource][]Rule

// DefaultTable is the authorization table of the stock-count service.
func DefaultTable() Table {
	return Table{
		User: {
			{Groups: []string{GroupAdmin}, Actions: crud},
			{Groups: []string{GroupSupervisor}, Actions: []Action{Read}},
			{Owner: true, Actions: []Action{Read, Update}},
		},
		StockCount: {
			{Groups: []string{GroupAdmin}, Actions: crud},
			{Groups: []string{GroupSupervisor}, Actions: []Action{Read}},
		},
		Area: {
			{Groups: []string{GroupAdmin, GroupSupervisor}, Actions: crud},
			{Groups: []string{GroupCounter}, Actions: []Action{Read}},
		},
		Assignment: {
			{Groups: []string{GroupAdmin, GroupSupervisor}, Actions: crud},
			{Owner: true, Actions: []Action{Read}},
		},
		CountSession: {
			{Groups: []string{GroupAdmin, GroupSupervisor}, Actions: []Action{Read, Delete}},
			{Owner: true, Actions: []Action{Create, Read, Update}},
		},
		CountItem: {
			{Groups: []string{GroupAdmin, GroupSupervisor}, Actions: []Action{Read}},
			{Owner: true, Actions: crud},
		},
		Comparison: {
			{Groups: []string{GroupAdmin, GroupSupervisor}, Actions: crud},
		},
		Discrepancy: {
			{Groups: []string{GroupSupervisor}, Actions: []Action{Read, Update}},
		},
	}
}

// Engine evaluates a Table. Aliases map legacy group names found in tokens to the
// canonical names used by the table.
type Engine struct {
	table   Table
	aliases map[string]string
	metrics *metrics.Metrics
}

func NewEngine(table Table, aliases map[string]string, m *metrics.Metrics) *Engine {
	if len(aliases) > 0 {
		log.Warn().Interface("aliases", aliases).Msg("policy: legacy group aliases enabled")
	}
	return &Engine{table: table, aliases: aliases, metrics: m}
}

// ParseAliases reads "Admins=ADMIN,Supervisors=SUPERVISOR" into a map.
func ParseAliases(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func (e *Engine) canonical(g string) string {
	if c, ok := e.aliases[g]; ok {
		return c
	}
	return g
}

func (e *Engine) inAnyGroup(actor Actor, groups []string) bool {
	for _, have := range actor.Groups {
		c := e.canonical(have)
		for _, want := range groups {
			if c == want {
				return true
			}
		}
	}
	return false
}

// GroupAllows reports whether a group rule grants act on res to actor.
func (e *Engine) GroupAllows(actor Actor, res Resource, act Action) bool {
	if actor.system {
		return true
	}
	for _, r := range e.table[res] {
		if !r.Owner && r.grants(act) && e.inAnyGroup(actor, r.Groups) {
			return true
		}
	}
	return false
}

// OwnerAllows reports whether an owner rule grants act on res.
func (e *Engine) OwnerAllows(res Resource, act Action) bool {
	for _, r := range e.table[res] {
		if r.Owner && r.grants(act) {
			return true
		}
	}
	return false
}

// Allows evaluates the table for a single record. owner is the value of the record's
// owner field, uuid.Nil for resources without one.
func (e *Engine) Allows(actor Actor, res Resource, act Action, owner uuid.UUID) bool {
	if e.GroupAllows(actor, res, act) {
		return true
	}
	return actor.ID != uuid.Nil && owner != uuid.Nil && actor.ID == owner && e.OwnerAllows(res, act)
}

// Authorize returns a PermissionDenied error unless Allows holds.
func (e *Engine) Authorize(actor Actor, res Resource, act Action, owner uuid.UUID) error {
	if e.Allows(actor, res, act, owner) {
		return nil
	}
	e.metrics.Denied(string(res), string(act))
	log.Debug().
		Str("actor", actor.ID.String()).
		Strs("groups", actor.Groups).
		Str("resource", string(res)).
		Str("action", string(act)).
		Msg("policy: denied")
	return apierror.PermissionDenied("%s on %s is not permitted", act, res)
}

// Scope is the result of authorizing a list operation.
type Scope struct {
	All   bool      // every record is visible
	Owner uuid.UUID // otherwise only records owned by Owner
}

// Visible reports whether a record with the given owner falls in the scope.
func (s Scope) Visible(owner uuid.UUID) bool {
	return s.All || (s.Owner != uuid.Nil && owner == s.Owner)
}

// ListScope authorizes a list of res. Group readers see everything; owner-only readers
// see their own records; anyone else is denied.
func (e *Engine) ListScope(actor Actor, res Resource) (Scope, error) {
	if e.GroupAllows(actor, res, Read) {
		return Scope{All: true}, nil
	}
	if actor.ID != uuid.Nil && e.OwnerAllows(res, Read) {
		return Scope{Owner: actor.ID}, nil
	}
	e.metrics.Denied(string(res), "list")
	return Scope{}, apierror.PermissionDenied("listing %s is not permitted", res)
}
