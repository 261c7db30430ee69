// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned for a non-loopback host while local-only
	// mode is on.
	ErrNonLocalhost = errors.New("only localhost connections are allowed in local-only mode")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https URLs are allowed")

	// ErrInvalidURL is returned for URLs that do not parse or name no host.
	ErrInvalidURL = errors.New("invalid URL")
)

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to localhost. A port is
// ignored; every loopback address (127.0.0.0/8, ::1) counts.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURL checks that rawURL is an http(s) URL with a host. With
// localOnly set the host must also be a loopback address.
func ValidateURL(rawURL string, localOnly bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidURLScheme, rawURL)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}

	if localOnly && !IsLocalhost(parsed.Hostname()) {
		return fmt.Errorf("%w: %s", ErrNonLocalhost, parsed.Host)
	}
	return nil
}
