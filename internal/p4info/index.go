// Package p4info indexes a device-supplied P4Info snapshot and turns
// symbolic table, action, field, and parameter names into the numeric
// ids and wire structures P4Runtime operates on. The snapshot is never
// mutated after construction and may be shared across readers.
package p4info

import (
	"fmt"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
)

// Kind selects which top-level P4Info collection a Query runs against.
type Kind int

const (
	KindTable Kind = iota
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindAction:
		return "action"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Query selects an entity by name or by id. Exactly one of the two must
// be set; P4Info ids are never zero, so a zero ID means "unset".
type Query struct {
	Name string
	ID   uint32
}

func (q Query) validate() error {
	if (q.Name == "") == (q.ID == 0) {
		return ErrInvalidQuery
	}
	return nil
}

func (q Query) String() string {
	if q.Name != "" {
		return fmt.Sprintf("%q", q.Name)
	}
	return fmt.Sprintf("id=%d", q.ID)
}

// NotFoundError reports a name or id with no match in the snapshot.
type NotFoundError struct {
	What string
}

func (e NotFoundError) Error() string {
	return "p4info: not found: " + e.What
}

// Index wraps an immutable P4Info snapshot.
type Index struct {
	info *p4config.P4Info
}

func New(info *p4config.P4Info) *Index {
	if info == nil {
		info = &p4config.P4Info{}
	}
	return &Index{info: info}
}

// Info returns the underlying snapshot.
func (ix *Index) Info() *p4config.P4Info {
	return ix.info
}

func preambleMatches(pre *p4config.Preamble, q Query) bool {
	if pre == nil {
		return false
	}
	if q.Name != "" {
		return pre.Name == q.Name || pre.Alias == q.Name
	}
	return pre.Id == q.ID
}

// Resolve scans the collection for kind and returns the matching
// entity's preamble. Name queries match the primary name or the alias.
func (ix *Index) Resolve(kind Kind, q Query) (*p4config.Preamble, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	switch kind {
	case KindTable:
		if t, err := ix.table(q); err == nil {
			return t.Preamble, nil
		}
	case KindAction:
		if a, err := ix.action(q); err == nil {
			return a.Preamble, nil
		}
	default:
		return nil, fmt.Errorf("p4info: unknown entity kind %d", int(kind))
	}
	return nil, NotFoundError{What: fmt.Sprintf("%s %s", kind, q)}
}

// ID resolves a name to its numeric id.
func (ix *Index) ID(kind Kind, name string) (uint32, error) {
	pre, err := ix.Resolve(kind, Query{Name: name})
	if err != nil {
		return 0, err
	}
	return pre.Id, nil
}

// Name resolves a numeric id to its primary name.
func (ix *Index) Name(kind Kind, id uint32) (string, error) {
	pre, err := ix.Resolve(kind, Query{ID: id})
	if err != nil {
		return "", err
	}
	return pre.Name, nil
}

func (ix *Index) table(q Query) (*p4config.Table, error) {
	for _, t := range ix.info.Tables {
		if preambleMatches(t.Preamble, q) {
			return t, nil
		}
	}
	return nil, NotFoundError{What: fmt.Sprintf("table %s", q)}
}

func (ix *Index) action(q Query) (*p4config.Action, error) {
	for _, a := range ix.info.Actions {
		if preambleMatches(a.Preamble, q) {
			return a, nil
		}
	}
	return nil, NotFoundError{What: fmt.Sprintf("action %s", q)}
}

// Tables returns every table in the snapshot, in schema order.
func (ix *Index) Tables() []*p4config.Table {
	return ix.info.Tables
}

// Table returns the full descriptor for one table, by name or alias.
func (ix *Index) Table(name string) (*p4config.Table, error) {
	return ix.table(Query{Name: name})
}

// MatchField scans the named table's match fields.
func (ix *Index) MatchField(table string, q Query) (*p4config.MatchField, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	t, err := ix.table(Query{Name: table})
	if err != nil {
		return nil, err
	}
	for _, mf := range t.MatchFields {
		if q.Name != "" {
			if mf.Name == q.Name {
				return mf, nil
			}
		} else if mf.Id == q.ID {
			return mf, nil
		}
	}
	return nil, NotFoundError{What: fmt.Sprintf("match field %s in table %q", q, table)}
}

// ActionParams returns the named action's params in declaration order.
func (ix *Index) ActionParams(action string) ([]*p4config.Action_Param, error) {
	a, err := ix.action(Query{Name: action})
	if err != nil {
		return nil, err
	}
	return a.Params, nil
}

// ActionParam scans the named action's params.
func (ix *Index) ActionParam(action string, q Query) (*p4config.Action_Param, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	a, err := ix.action(Query{Name: action})
	if err != nil {
		return nil, err
	}
	for _, p := range a.Params {
		if q.Name != "" {
			if p.Name == q.Name {
				return p, nil
			}
		} else if p.Id == q.ID {
			return p, nil
		}
	}
	return nil, NotFoundError{What: fmt.Sprintf("param %s in action %q", q, action)}
}
