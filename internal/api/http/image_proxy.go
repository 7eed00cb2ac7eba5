package apihttp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxCoverBytes = int64(10 * 1024 * 1024)

var (
	errBlockedHost  = errors.New("blocked url host")
	errNotAnImage   = errors.New("not an image")
	errCoverTooBig  = errors.New("image too large")
	blockedHostname = map[string]struct{}{
		"localhost": {}, "127.0.0.1": {}, "::1": {}, "redis": {}, "catalog": {}, "catalogservice": {},
	}
)

// lookupIPAddr is swapped in tests.
var lookupIPAddr = net.DefaultResolver.LookupIPAddr

// handleImageProxy serves provider covers through this host so hot-link
// protected CDNs still render.
func (s *Server) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing url")
		return
	}
	target, err := url.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid url")
		return
	}
	if err := validateProxyURL(r.Context(), target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, head, err := fetchCover(r.Context(), target)
	if err != nil {
		switch {
		case errors.Is(err, errCoverTooBig):
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", err.Error())
		default:
			writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
		}
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", head.contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(head.bytes)
	_, _ = io.Copy(w, io.LimitReader(resp.Body, maxCoverBytes-int64(len(head.bytes))))
}

type coverHead struct {
	contentType string
	bytes       []byte
}

// fetchCover opens the upstream image and sniffs its first bytes. The caller
// owns resp.Body when err is nil.
func fetchCover(ctx context.Context, target *url.URL) (*http.Response, coverHead, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, coverHead{}, errors.New("invalid url")
	}
	req.Header.Set("User-Agent", "rfxstream-catalog/1.0")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,id;q=0.8")
	req.Header.Set("Referer", target.Scheme+"://"+target.Host+"/")

	resp, err := newImageProxyClient(ctx).Do(req)
	if err != nil {
		return nil, coverHead{}, errors.New("failed to fetch image")
	}
	fail := func(err error) (*http.Response, coverHead, error) {
		_ = resp.Body.Close()
		return nil, coverHead{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("upstream returned HTTP %d", resp.StatusCode))
	}
	if resp.ContentLength > maxCoverBytes {
		return fail(errCoverTooBig)
	}

	buf := make([]byte, 512)
	n, readErr := io.ReadFull(resp.Body, buf)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		return fail(errors.New("failed to read image"))
	}
	head := coverHead{bytes: buf[:n], contentType: strings.TrimSpace(resp.Header.Get("Content-Type"))}
	if head.contentType == "" {
		head.contentType = http.DetectContentType(head.bytes)
	}
	if !strings.HasPrefix(strings.ToLower(head.contentType), "image/") {
		return fail(errNotAnImage)
	}
	return resp, head, nil
}

func newImageProxyClient(parent context.Context) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.ForceAttemptHTTP2 = false
	transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	transport.DialContext = (&net.Dialer{Timeout: 8 * time.Second, KeepAlive: 30 * time.Second}).DialContext

	return &http.Client{
		Timeout:   12 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			return validateProxyURL(parent, req.URL)
		},
	}
}

func validateProxyURL(ctx context.Context, u *url.URL) error {
	if u == nil {
		return errors.New("invalid url")
	}
	scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
	if scheme != "http" && scheme != "https" {
		return errors.New("unsupported url scheme")
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return errors.New("invalid url host")
	}
	if _, blocked := blockedHostname[host]; blocked {
		return errBlockedHost
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return errBlockedHost
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return errBlockedHost
		}
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	addrs, err := lookupIPAddr(lookupCtx, host)
	if err != nil || len(addrs) == 0 {
		return errors.New("failed to resolve url host")
	}
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return errBlockedHost
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified()
}
