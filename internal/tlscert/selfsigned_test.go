package tlscert

import (
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSelfSignedManager_GeneratesAndReusesCertificate(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{
		Mode:              CertModeSelfSigned,
		SelfSignedCertDir: dir,
		SelfSignedHosts:   []string{"localhost", "127.0.0.1"},
	}

	manager, err := NewManager(cfg, logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tlsConfig, err := manager.GetTLSConfig()
	if err != nil {
		t.Fatalf("GetTLSConfig: %v", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Fatalf("certificates = %d, want 1", len(tlsConfig.Certificates))
	}

	certPEM, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	if err != nil {
		t.Fatalf("read certificate: %v", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("certificate file is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Fatalf("DNSNames = %v, want [localhost]", cert.DNSNames)
	}

	// A second manager over the same directory must keep the pair.
	if _, err := NewManager(cfg, logger); err != nil {
		t.Fatalf("NewManager reuse: %v", err)
	}
	reread, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	if err != nil {
		t.Fatalf("reread certificate: %v", err)
	}
	if string(reread) != string(certPEM) {
		t.Fatal("certificate was regenerated for unchanged hosts")
	}
}

func TestSelfSignedManager_RegeneratesOnHostChange(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	if _, err := NewManager(Config{
		Mode:              CertModeSelfSigned,
		SelfSignedCertDir: dir,
		SelfSignedHosts:   []string{"localhost"},
	}, logger); err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	if err != nil {
		t.Fatalf("read certificate: %v", err)
	}

	if _, err := NewManager(Config{
		Mode:              CertModeSelfSigned,
		SelfSignedCertDir: dir,
		SelfSignedHosts:   []string{"localhost", "tablegraph.internal"},
	}, logger); err != nil {
		t.Fatalf("NewManager with new hosts: %v", err)
	}
	after, err := os.ReadFile(filepath.Join(dir, "server.crt"))
	if err != nil {
		t.Fatalf("reread certificate: %v", err)
	}
	if string(before) == string(after) {
		t.Fatal("certificate was not regenerated for changed hosts")
	}
}

func TestFileManager_RejectsWorldReadableKey(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	if _, err := NewManager(Config{
		Mode:              CertModeSelfSigned,
		SelfSignedCertDir: dir,
	}, logger); err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	if err := os.Chmod(keyPath, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	_, err := NewManager(Config{
		Mode:     CertModeFile,
		CertFile: certPath,
		KeyFile:  keyPath,
	}, logger)
	if err == nil {
		t.Fatal("expected error for world-readable key file")
	}
}
