package webhook

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Hostnames that must never be webhook targets, regardless of what they
// resolve to.
var blockedHosts = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"kubernetes.default":       {},
	"169.254.169.254":          {},
}

// Well-known ports of internal services a webhook must not reach.
var blockedPorts = map[string]struct{}{
	"22":    {}, // SSH
	"3306":  {}, // MySQL
	"5432":  {}, // PostgreSQL
	"6379":  {}, // Redis
	"27017": {}, // MongoDB
}

// ValidateOption configures URL validation.
type ValidateOption func(*validateOptions)

type validateOptions struct {
	allowLoopback bool
	lookupIP      func(host string) ([]net.IP, error)
}

// AllowLoopback lifts only the loopback restriction, for local
// development against a webhook receiver on the same machine.
func AllowLoopback() ValidateOption {
	return func(o *validateOptions) {
		o.allowLoopback = true
	}
}

// WithLookupIP overrides DNS resolution, for tests.
func WithLookupIP(fn func(host string) ([]net.IP, error)) ValidateOption {
	return func(o *validateOptions) {
		o.lookupIP = fn
	}
}

// ValidateURL rejects webhook targets that point at internal
// infrastructure: private ranges, loopback, link-local, cloud metadata
// endpoints, Kubernetes service names, and dangerous well-known ports.
// Both the textual host and every resolved address are checked. A
// validation failure is permanent for that URL.
func ValidateURL(rawURL string, opts ...ValidateOption) error {
	options := &validateOptions{lookupIP: net.LookupIP}
	for _, opt := range opts {
		opt(options)
	}

	if rawURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}

	if _, blocked := blockedPorts[u.Port()]; blocked {
		return fmt.Errorf("%w: port %s targets an internal service", ErrForbiddenURL, u.Port())
	}

	if err := checkHostname(host, options.allowLoopback); err != nil {
		return err
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip, options.allowLoopback)
	}

	// Resolve and re-check; DNS rebinding to internal ranges is the
	// classic SSRF vector.
	addrs, err := options.lookupIP(host)
	if err != nil {
		return fmt.Errorf("%w: resolving %s: %w", ErrInvalidURL, host, err)
	}
	for _, addr := range addrs {
		if err := checkIP(addr, options.allowLoopback); err != nil {
			return err
		}
	}
	return nil
}

func checkHostname(host string, allowLoopback bool) error {
	if host == "localhost" && allowLoopback {
		return nil
	}
	if _, blocked := blockedHosts[host]; blocked {
		return fmt.Errorf("%w: host %q is a blocked internal name", ErrForbiddenURL, host)
	}
	if strings.HasSuffix(host, ".svc") || strings.Contains(host, ".svc.") {
		return fmt.Errorf("%w: host %q is a Kubernetes service name", ErrForbiddenURL, host)
	}
	if strings.HasPrefix(host, "kubernetes.default.") {
		return fmt.Errorf("%w: host %q is a Kubernetes service name", ErrForbiddenURL, host)
	}
	return nil
}

func checkIP(ip net.IP, allowLoopback bool) error {
	switch {
	case ip.IsLoopback():
		if allowLoopback {
			return nil
		}
		return fmt.Errorf("%w: %s is a loopback address", ErrForbiddenURL, ip)
	case ip.IsPrivate():
		return fmt.Errorf("%w: %s is in a private range", ErrForbiddenURL, ip)
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Errorf("%w: %s is link-local", ErrForbiddenURL, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: %s is unspecified", ErrForbiddenURL, ip)
	}
	return nil
}
