package main

import (
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient_TrustsProvidedCA(t *testing.T) {
	tlsServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer tlsServer.Close()

	caPath := filepath.Join(t.TempDir(), "root_ca.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: tlsServer.Certificate().Raw,
	})
	if err := os.WriteFile(caPath, certPEM, 0o600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}

	client, err := newHTTPClient(3*time.Second, caPath)
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	resp, err := client.Get(tlsServer.URL)
	if err != nil {
		t.Fatalf("expected request success with custom CA, got: %v", err)
	}
	_ = resp.Body.Close()
}

func TestNewHTTPClient_RejectsInvalidCAFile(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "invalid_ca.crt")
	if err := os.WriteFile(caPath, []byte("invalid"), 0o600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}

	if _, err := newHTTPClient(3*time.Second, caPath); err == nil {
		t.Fatal("expected error for invalid CA file")
	}
}

func newIssuerServer(t *testing.T, jwksBody string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"issuer":%q,"jwks_uri":%q}`, server.URL, server.URL+"/jwks")
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jwksBody))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestProbe_HealthyIssuer(t *testing.T) {
	server := newIssuerServer(t, `{"keys":[{"kty":"RSA","use":"sig","alg":"RS256","kid":"local-key"}]}`)

	client, err := newHTTPClient(3*time.Second, "")
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	if err := probe(client, server.URL+"/.well-known/openid-configuration", server.URL); err != nil {
		t.Fatalf("expected probe success, got: %v", err)
	}
}

func TestProbe_NoSigningKey(t *testing.T) {
	server := newIssuerServer(t, `{"keys":[{"kty":"EC","use":"sig","alg":"ES256","kid":"ec-key"}]}`)

	client, err := newHTTPClient(3*time.Second, "")
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	err = probe(client, server.URL+"/.well-known/openid-configuration", "")
	if err == nil {
		t.Fatal("expected probe to fail without an RS256 key")
	}
	if !strings.Contains(err.Error(), "no RS256 signing key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProbe_IssuerMismatch(t *testing.T) {
	server := newIssuerServer(t, `{"keys":[{"kty":"RSA","use":"sig","alg":"RS256","kid":"local-key"}]}`)

	client, err := newHTTPClient(3*time.Second, "")
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}

	err = probe(client, server.URL+"/.well-known/openid-configuration", "https://elsewhere:9000")
	if err == nil {
		t.Fatal("expected probe to fail on issuer mismatch")
	}
	if !strings.Contains(err.Error(), "issuer mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}
