package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const maxRemoteSize = 32 << 20

var (
	ErrUnsupportedRef   = errors.New("unsupported image reference")
	ErrRemoteDisabled   = errors.New("remote image references are disabled")
	ErrForbiddenAddress = errors.New("address not allowed")
)

// Resolver turns the image references used by the editor into bytes.
// It understands data URLs, http(s) URLs and stored asset references.
type Resolver struct {
	assets   *Handler
	client   *http.Client
	noRemote bool
}

type ResolverOption func(*Resolver)

// WithoutRemote makes the resolver refuse http(s) references.
func WithoutRemote() ResolverOption {
	return func(r *Resolver) { r.noRemote = true }
}

// NewResolver creates a resolver. assets may be nil when no asset store is
// available; client defaults to http.DefaultClient.
func NewResolver(assets *Handler, client *http.Client, opts ...ResolverOption) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	r := &Resolver{assets: assets, client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PublicClient returns an HTTP client that only connects to public unicast
// addresses. The check runs on the resolved address of every dial, so
// redirects and DNS answers pointing at internal hosts are refused too.
func PublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			return checkPublic(address)
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func checkPublic(address string) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	ip := ap.Addr().Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ip)
	}
	return nil
}

func (r *Resolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedRef)
	case strings.HasPrefix(ref, "data:"):
		data, _, err := ParseDataURL(ref)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if r.noRemote {
			return nil, ErrRemoteDisabled
		}
		return r.fetch(ctx, ref)
	}

	if id := assetIDFromRef(ref); id != "" && r.assets != nil {
		return r.assets.Open(id)
	}
	return nil, fmt.Errorf("%w: %.40q", ErrUnsupportedRef, ref)
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", u.Redacted(), resp.StatusCode)
	}

	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxRemoteSize), resp.Body}, nil
}

// ParseDataURL decodes a "data:<mime>[;base64],<payload>" URL.
func ParseDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("malformed data url: missing comma")
	}

	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data url: %w", err)
		}
		return []byte(text), mime, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("malformed data url: %w", err)
		}
	}
	return data, mime, nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
