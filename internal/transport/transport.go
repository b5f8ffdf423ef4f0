// Package transport builds the HTTP client used to reach the registry.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/dnscache"
)

// DefaultRefreshInterval is how often cached DNS entries are refreshed.
const DefaultRefreshInterval = 5 * time.Minute

// Options configures NewHTTPClient.
type Options struct {
	Timeout         time.Duration
	RefreshInterval time.Duration
	Resolver        *dnscache.Resolver
}

// NewHTTPClient returns an http.Client whose dialer resolves hosts through a
// DNS cache. The returned stop function ends the cache refresh loop.
func NewHTTPClient(opts Options) (*http.Client, func()) {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = &dnscache.Resolver{}
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(opts.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           DialContext(resolver, dialer),
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	var once sync.Once
	return client, func() {
		once.Do(func() { close(stop) })
	}
}

// DialContext dials the first reachable address resolver returns for the host.
func DialContext(resolver *dnscache.Resolver, dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses for %s", host)
		}
		return nil, fmt.Errorf("failed to dial any resolved IP: %w", lastErr)
	}
}
