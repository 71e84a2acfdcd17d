package tools

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// ErrPrivateAddress means a URL resolved to a loopback, private, or
// link-local address and was rejected before any socket was opened.
var ErrPrivateAddress = errors.New("url resolves to a private address")

// isPrivateIP reports whether an address must never be fetched on behalf
// of a model: loopback, RFC 1918, link-local, and unspecified ranges.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// GuardURL validates a URL for outbound fetching. It parses the URL,
// resolves the hostname, and fails when any resolved address is private.
// Runs synchronously before dialing so a blocked URL never touches the
// network stack beyond DNS.
func GuardURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("url missing host")
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
		}
		return nil
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range addrs {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s -> %s", ErrPrivateAddress, host, ip)
		}
	}
	return nil
}

// GuardedControl is a net.Dialer Control hook re-checking the connect
// address, closing the DNS-rebinding window between GuardURL and dial.
func GuardedControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("split dial address: %w", err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial address %q is not an IP", host)
	}
	if isPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
	}
	return nil
}
