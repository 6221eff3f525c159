package p4info

import (
	"errors"
	"fmt"
	"math"
	"sort"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/p4ovs/ovs-p4ctl/internal/p4values"
)

// ErrInvalidQuery means a Query set both name and id, or neither.
var ErrInvalidQuery = errors.New("p4info: exactly one of name or id must be set")

// pair pulls the two-element value LPM, TERNARY, and RANGE matches need.
func pair(v any) (any, any, error) {
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		return nil, nil, p4values.EncodingError{Reason: fmt.Sprintf("expected a (value, value) pair, got %T", v)}
	}
	return list[0], list[1], nil
}

func prefixLen(v any) (int32, error) {
	switch n := v.(type) {
	case int:
		if n < 0 || n > math.MaxInt32 {
			return 0, p4values.EncodingError{Reason: fmt.Sprintf("prefix length %d out of range", n)}
		}
		return int32(n), nil
	case int32:
		if n < 0 {
			return 0, p4values.EncodingError{Reason: fmt.Sprintf("prefix length %d out of range", n)}
		}
		return n, nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, p4values.EncodingError{Reason: fmt.Sprintf("prefix length %d out of range", n)}
		}
		return int32(n), nil
	default:
		return 0, p4values.EncodingError{Reason: fmt.Sprintf("prefix length must be an integer, got %T", v)}
	}
}

// BuildMatch constructs the wire-level field match for one user value,
// dispatching on the field's schema match type.
func (ix *Index) BuildMatch(table, field string, value any) (*p4v1.FieldMatch, error) {
	mf, err := ix.MatchField(table, Query{Name: field})
	if err != nil {
		return nil, err
	}
	bitwidth := int(mf.Bitwidth)
	out := &p4v1.FieldMatch{FieldId: mf.Id}

	switch mf.GetMatchType() {
	case p4config.MatchField_EXACT:
		enc, err := p4values.Encode(value, bitwidth)
		if err != nil {
			return nil, err
		}
		out.FieldMatchType = &p4v1.FieldMatch_Exact_{
			Exact: &p4v1.FieldMatch_Exact{Value: enc},
		}
	case p4config.MatchField_LPM:
		v, p, err := pair(value)
		if err != nil {
			return nil, err
		}
		enc, err := p4values.Encode(v, bitwidth)
		if err != nil {
			return nil, err
		}
		plen, err := prefixLen(p)
		if err != nil {
			return nil, err
		}
		out.FieldMatchType = &p4v1.FieldMatch_Lpm{
			Lpm: &p4v1.FieldMatch_LPM{Value: enc, PrefixLen: plen},
		}
	case p4config.MatchField_TERNARY:
		v, m, err := pair(value)
		if err != nil {
			return nil, err
		}
		enc, err := p4values.Encode(v, bitwidth)
		if err != nil {
			return nil, err
		}
		mask, err := p4values.Encode(m, bitwidth)
		if err != nil {
			return nil, err
		}
		out.FieldMatchType = &p4v1.FieldMatch_Ternary_{
			Ternary: &p4v1.FieldMatch_Ternary{Value: enc, Mask: mask},
		}
	case p4config.MatchField_RANGE:
		lo, hi, err := pair(value)
		if err != nil {
			return nil, err
		}
		low, err := p4values.Encode(lo, bitwidth)
		if err != nil {
			return nil, err
		}
		high, err := p4values.Encode(hi, bitwidth)
		if err != nil {
			return nil, err
		}
		out.FieldMatchType = &p4v1.FieldMatch_Range_{
			Range: &p4v1.FieldMatch_Range{Low: low, High: high},
		}
	default:
		return nil, p4values.EncodingError{Reason: fmt.Sprintf(
			"unsupported match type %s for field %q", mf.GetMatchType(), field)}
	}
	return out, nil
}

// EntrySpec names everything needed to build one table entry.
type EntrySpec struct {
	Table         string
	Match         map[string]any
	DefaultAction bool
	Action        string
	Params        map[string]any
	Priority      int32
}

// BuildTableEntry resolves every name in spec and assembles the wire
// entry. Construction is all-or-nothing: the first failed resolution or
// encoding aborts and no partial entry is returned. Match fields and
// params are emitted in sorted-name order so entries are reproducible.
func (ix *Index) BuildTableEntry(spec EntrySpec) (*p4v1.TableEntry, error) {
	tableID, err := ix.ID(KindTable, spec.Table)
	if err != nil {
		return nil, err
	}
	entry := &p4v1.TableEntry{
		TableId:  tableID,
		Priority: spec.Priority,
	}

	for _, name := range sortedKeys(spec.Match) {
		fm, err := ix.BuildMatch(spec.Table, name, spec.Match[name])
		if err != nil {
			return nil, err
		}
		entry.Match = append(entry.Match, fm)
	}

	if spec.DefaultAction {
		entry.IsDefaultAction = true
	}

	if spec.Action != "" {
		actionID, err := ix.ID(KindAction, spec.Action)
		if err != nil {
			return nil, err
		}
		action := &p4v1.Action{ActionId: actionID}
		for _, name := range sortedKeys(spec.Params) {
			p, err := ix.ActionParam(spec.Action, Query{Name: name})
			if err != nil {
				return nil, err
			}
			enc, err := p4values.Encode(spec.Params[name], int(p.Bitwidth))
			if err != nil {
				return nil, err
			}
			action.Params = append(action.Params, &p4v1.Action_Param{ParamId: p.Id, Value: enc})
		}
		entry.Action = &p4v1.TableAction{
			Type: &p4v1.TableAction_Action{Action: action},
		}
	}
	return entry, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
