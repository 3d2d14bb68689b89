package ruletree

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a finite sequence over {0, 1}: 0 selects the left child, 1 the
// right, read from the root. The empty address addresses the root itself.
type Address []int

// ParseAddress parses the protocol tuple form, e.g. "()" or "(0,1)".
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, nil
	}
	parts := strings.Split(s, ",")
	addr := make(Address, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil || (v != 0 && v != 1) {
			return nil, fmt.Errorf("%w: bad address component %q", ErrInvalidAddress, p)
		}
		addr = append(addr, v)
	}
	return addr, nil
}

// String renders the address back to its protocol tuple form.
func (a Address) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.Itoa(v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Parent returns addr[:-1] and the last step (0=left, 1=right). Only valid
// for a non-empty address.
func (a Address) Parent() (Address, int) {
	return a[:len(a)-1], a[len(a)-1]
}
