package network

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Noooste/azuretls-client"
	"golang.org/x/net/proxy"
)

// ProxyProvider supplies the outbound proxy URL, or "" for direct access.
type ProxyProvider interface {
	GetProxyURL(ctx context.Context) string
}

// StaticProxy is a ProxyProvider with a fixed URL.
type StaticProxy string

func (p StaticProxy) GetProxyURL(context.Context) string {
	return strings.TrimSpace(string(p))
}

// ClientFactory creates outbound clients that honor the proxy configuration.
type ClientFactory struct {
	proxyProvider  ProxyProvider
	testHTTPClient *http.Client // For testing only
}

func NewClientFactory(proxyProvider ProxyProvider) *ClientFactory {
	if proxyProvider == nil {
		proxyProvider = StaticProxy("")
	}
	return &ClientFactory{proxyProvider: proxyProvider}
}

// NewClientFactoryForTest returns a factory whose HTTP clients are always client.
func NewClientFactoryForTest(client *http.Client) *ClientFactory {
	return &ClientFactory{
		proxyProvider:  StaticProxy(""),
		testHTTPClient: client,
	}
}

// NewHTTPClient creates a standard http.Client with proxy configuration.
func (f *ClientFactory) NewHTTPClient(ctx context.Context, timeout time.Duration) *http.Client {
	if f.testHTTPClient != nil {
		return f.testHTTPClient
	}

	client := &http.Client{Timeout: timeout}
	if proxyURL := f.proxyProvider.GetProxyURL(ctx); proxyURL != "" {
		client.Transport = newTransportWithProxy(proxyURL)
	}
	return client
}

// NewAzureSession creates a Chrome-fingerprinted session with proxy configuration.
func (f *ClientFactory) NewAzureSession(ctx context.Context, timeout time.Duration) *azuretls.Session {
	session := azuretls.NewSession()
	session.Browser = azuretls.Chrome
	session.SetTimeout(timeout)

	if proxyURL := f.proxyProvider.GetProxyURL(ctx); proxyURL != "" {
		_ = session.SetProxy(proxyURL)
	}

	return session
}

// newTransportWithProxy dials SOCKS proxies through x/net/proxy and uses
// http.ProxyURL for everything else.
func newTransportWithProxy(proxyURL string) *http.Transport {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return &http.Transport{}
	}

	if strings.HasPrefix(parsed.Scheme, "socks") {
		var auth *proxy.Auth
		if parsed.User != nil {
			auth = &proxy.Auth{User: parsed.User.Username()}
			if password, ok := parsed.User.Password(); ok {
				auth.Password = password
			}
		}

		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return &http.Transport{}
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return &http.Transport{DialContext: cd.DialContext}
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	}

	return &http.Transport{
		Proxy: http.ProxyURL(parsed),
	}
}
