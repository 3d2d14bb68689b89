package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
)

// splitTopLevel tokenizes a command line on whitespace, except inside a
// parenthesized group — "(WHOLE, RE, ssh.*, false, false)" stays one token
// even though it contains spaces after the commas. A paren-aware scan keeps
// the grammar unambiguous instead of relying on a regex that can't tell a
// top-level separator from one nested inside a tuple.
func splitTopLevel(line string) []string {
	var tokens []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ' ' && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// parsePredicateTuple parses "(matchfield, operator, value, negated, case_insensitive)".
func parsePredicateTuple(tok string) (predicate.Predicate, error) {
	fields, err := splitTuple(tok, 5)
	if err != nil {
		return predicate.Predicate{}, err
	}
	mf, err := predicate.ParseMatchField(fields[0])
	if err != nil {
		return predicate.Predicate{}, err
	}
	op, err := predicate.ParseOperator(fields[1])
	if err != nil {
		return predicate.Predicate{}, err
	}
	neg, err := strconv.ParseBool(fields[3])
	if err != nil {
		return predicate.Predicate{}, fmt.Errorf("%w: bad negated flag %q", ErrProtocol, fields[3])
	}
	ci, err := strconv.ParseBool(fields[4])
	if err != nil {
		return predicate.Predicate{}, fmt.Errorf("%w: bad case_insensitive flag %q", ErrProtocol, fields[4])
	}
	return predicate.Predicate{
		Field:           mf,
		Operator:        op,
		Value:           fields[2],
		Negated:         neg,
		CaseInsensitive: ci,
	}, nil
}

// splitTuple strips the outer parens and splits on commas, trimming
// whitespace, requiring exactly n fields.
func splitTuple(tok string, n int) ([]string, error) {
	tok = strings.TrimSpace(tok)
	if !strings.HasPrefix(tok, "(") || !strings.HasSuffix(tok, ")") {
		return nil, fmt.Errorf("%w: expected parenthesized tuple, got %q", ErrProtocol, tok)
	}
	inner := tok[1 : len(tok)-1]
	parts := strings.Split(inner, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: expected %d fields, got %d in %q", ErrProtocol, n, len(parts), tok)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseAddrTuple(tok string) (ruletree.Address, error) {
	addr, err := ruletree.ParseAddress(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return addr, nil
}

func parseLwID(tok string) (int, error) {
	id, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: bad LogWatch id %q", ErrProtocol, tok)
	}
	return id, nil
}
