package proxy

import (
	"context"
	"strings"
)

// TargetLookup resolves an inbound host header to the project slug whose
// artifacts should be served. The fetch/fallback algorithm in Resolver does
// not care how the mapping works, so custom-domain support later only needs
// a different implementation (a domain table lookup) behind this interface.
type TargetLookup interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// SubdomainLookup is the identity mapping: the slug is the first
// dot-separated label of the host header, or the whole header when it has
// no dot.
type SubdomainLookup struct{}

func (SubdomainLookup) Resolve(_ context.Context, host string) (string, error) {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i], nil
	}
	return host, nil
}
