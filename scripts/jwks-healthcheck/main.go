// Command jwks-healthcheck probes a local OIDC issuer the way the server's
// auth middleware does at startup: it fetches the discovery document, follows
// jwks_uri, and fails unless the key set advertises an RS256 signing key.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type oidcDiscoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Use string `json:"use"`
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	} `json:"keys"`
}

func main() {
	url := flag.String("url", "https://localhost:9000/.well-known/openid-configuration", "OIDC discovery URL to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "HTTP request timeout")
	expectedIssuer := flag.String("expected-issuer", "", "Optional expected issuer value")
	caFile := flag.String("ca-file", "", "Optional CA bundle to trust; self-signed certs are accepted when unset")
	flag.Parse()

	client, err := newHTTPClient(*timeout, *caFile)
	if err != nil {
		exitErr(err)
	}

	if err := probe(client, *url, *expectedIssuer); err != nil {
		exitErr(err)
	}
}

// newHTTPClient trusts the given CA bundle when one is provided. Without one
// it skips verification, since the local compose JWKS uses a self-signed cert.
func newHTTPClient(timeout time.Duration, caFile string) (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("no certificates found in CA file %s", caFile)
		}
		tlsConfig = &tls.Config{RootCAs: pool}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func probe(client *http.Client, discoveryURL, expectedIssuer string) error {
	doc, err := fetchJSON[oidcDiscoveryDocument](client, discoveryURL)
	if err != nil {
		return fmt.Errorf("discovery probe failed: %w", err)
	}

	if strings.TrimSpace(doc.Issuer) == "" {
		return fmt.Errorf("discovery document missing issuer")
	}
	if strings.TrimSpace(doc.JWKSURI) == "" {
		return fmt.Errorf("discovery document missing jwks_uri")
	}
	if expectedIssuer != "" && doc.Issuer != expectedIssuer {
		return fmt.Errorf("issuer mismatch: got %q want %q", doc.Issuer, expectedIssuer)
	}

	keys, err := fetchJSON[jwksDocument](client, doc.JWKSURI)
	if err != nil {
		return fmt.Errorf("jwks probe failed: %w", err)
	}
	for _, key := range keys.Keys {
		if key.Kty == "RSA" && (key.Alg == "" || key.Alg == "RS256") {
			return nil
		}
	}
	return fmt.Errorf("jwks at %s advertises no RS256 signing key", doc.JWKSURI)
}

func fetchJSON[T any](client *http.Client, url string) (T, error) {
	var out T

	resp, err := client.Get(url)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return out, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
