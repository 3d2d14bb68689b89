package enrich

import (
	"fmt"
	"net"
)

func parseIP(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("enrich: not an IP literal: %q", s)
	}
	return ip, nil
}
