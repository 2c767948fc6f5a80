// Package urlref decomposes target URLs into the parts the authorizers need.
package urlref

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// B2Host is the marker authority identifying B2 targets, as in
// https://b2/<bucket>/<object path>.
const B2Host = "b2"

// Target is a URL decomposed into bucket and object path.
type Target struct {
	Host   string
	Bucket string

	// ObjectPath is everything after the bucket segment, including the
	// leading separator. It keeps the URL's escaping.
	ObjectPath string
}

// FromURL decomposes u. The bucket is the first path segment after the
// authority and must not be empty.
func FromURL(u *url.URL) (Target, error) {
	p := strings.TrimPrefix(u.EscapedPath(), "/")
	bucket, rest, found := strings.Cut(p, "/")
	if bucket == "" {
		return Target{}, fmt.Errorf("%w: no bucket segment in %q", b2middleware.ErrMalformedURL, u.Redacted())
	}
	if found {
		rest = "/" + rest
	}
	return Target{Host: u.Host, Bucket: bucket, ObjectPath: rest}, nil
}

// IsB2 reports whether u uses the B2 marker authority.
func IsB2(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Hostname(), B2Host)
}

// HostMatches reports whether host is endpoint or a subdomain of it, so both
// path-style (s3.amazonaws.com/bucket) and virtual-hosted
// (bucket.s3.amazonaws.com) URLs match. Ports are ignored unless endpoint
// names one.
func HostMatches(host, endpoint string) bool {
	if host == "" || endpoint == "" {
		return false
	}
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		host = hostname(host)
	}
	host = strings.ToLower(host)
	endpoint = strings.ToLower(endpoint)
	return host == endpoint || strings.HasSuffix(host, "."+endpoint)
}

// DownloadURL builds the B2 download-by-name URL for bucket and objectPath.
func DownloadURL(base, bucket, objectPath string) string {
	return strings.TrimSuffix(base, "/") + "/file/" + bucket + objectPath
}

func hostname(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
