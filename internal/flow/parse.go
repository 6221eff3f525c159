// Package flow parses the textual table-entry syntax used by the CLI:
//
//	hdr.ipv4.dstAddr=10.0.0.0/24,priority=10,action=push_mpls(20)
//
// Match keys map to fields of the target table; an LPM value carries
// its prefix length after a slash; action names one action with its
// parameters in order.
package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry is the parsed form of one flow string, expressed in the loose
// value types the schema-aware encoder accepts.
type Entry struct {
	Match    map[string]any
	Action   string
	Params   []any
	Priority int32
}

// ParseError reports where a flow string went wrong.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("flow: bad token %q: %s", e.Token, e.Reason)
}

// Parse splits a flow string into matches, an action invocation, and
// an optional priority. Every token must be key=value; the action
// token is mandatory.
func Parse(s string) (*Entry, error) {
	entry := &Entry{Match: make(map[string]any)}
	for _, token := range splitTop(s) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return nil, &ParseError{Token: token, Reason: "expected key=value"}
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "action":
			if entry.Action != "" {
				return nil, &ParseError{Token: token, Reason: "duplicate action"}
			}
			name, params, err := parseAction(value)
			if err != nil {
				return nil, err
			}
			entry.Action, entry.Params = name, params
		case "priority":
			p, err := strconv.ParseInt(value, 10, 32)
			if err != nil {
				return nil, &ParseError{Token: token, Reason: "priority is not a number"}
			}
			entry.Priority = int32(p)
		default:
			if _, dup := entry.Match[key]; dup {
				return nil, &ParseError{Token: token, Reason: "duplicate match field"}
			}
			entry.Match[key] = parseValue(value)
		}
	}
	if entry.Action == "" {
		return nil, &ParseError{Token: s, Reason: "missing action"}
	}
	return entry, nil
}

// splitTop splits on commas that are not inside action parentheses.
func splitTop(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func parseAction(s string) (string, []any, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		// Parameterless actions may omit the parentheses.
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, &ParseError{Token: s, Reason: "unterminated action arguments"}
	}
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return "", nil, &ParseError{Token: s, Reason: "missing action name"}
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return name, nil, nil
	}
	var params []any
	for _, arg := range strings.Split(inner, ",") {
		params = append(params, parseScalar(strings.TrimSpace(arg)))
	}
	return name, params, nil
}

// parseValue handles LPM notation: value/prefix becomes a two-element
// slice the encoder turns into an lpm match.
func parseValue(s string) any {
	if value, prefix, ok := strings.Cut(s, "/"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(prefix)); err == nil {
			return []any{parseScalar(strings.TrimSpace(value)), n}
		}
	}
	return parseScalar(s)
}

// parseScalar keeps numbers numeric so the encoder can range-check
// them against the field bitwidth; everything else stays a string.
func parseScalar(s string) any {
	if n, err := strconv.ParseUint(s, 0, 64); err == nil {
		return n
	}
	return s
}
