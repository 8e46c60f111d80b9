package probe

import (
	"context"
	"errors"
	"net"
	"strings"
)

// DNSClass explains why a hostname target could not be reached.
type DNSClass string

const (
	DNSResolves          DNSClass = "RESOLVES"
	DNSNXDomain          DNSClass = "NXDOMAIN"
	DNSNoARecord         DNSClass = "NO_A_RECORD"
	DNSServfailOrTimeout DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName       DNSClass = "INVALID_NAME"
)

// ClassifyDNS resolves host and sorts the answer into a DNSClass. IP
// literals are not looked up and classify as RESOLVES.
func ClassifyDNS(ctx context.Context, r *net.Resolver, host string) DNSClass {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") || strings.ContainsAny(host, " /") {
		return DNSInvalidName
	}
	if net.ParseIP(host) != nil {
		return DNSResolves
	}
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return DNSResolves
	}

	class := DNSServfailOrTimeout
	var de *net.DNSError
	if errors.As(err, &de) && de.IsNotFound {
		class = DNSNXDomain
	}
	if ns, err := r.LookupNS(ctx, host); err == nil && len(ns) > 0 {
		class = DNSNoARecord
	}
	return class
}
