package security

import (
	"crypto/tls"
	"testing"

	"github.com/kbukum/voicememo/security/tlstest"
)

func TestBuildDisabled(t *testing.T) {
	cfg := TLSConfig{CAFile: "/nonexistent/ca.pem"}
	result, err := cfg.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatal("expected nil config when TLS is disabled")
	}
}

func TestBuildSkipVerify(t *testing.T) {
	result, err := TLSConfig{Enabled: true, SkipVerify: true, ServerName: "redis.internal"}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=true")
	}
	if result.ServerName != "redis.internal" {
		t.Errorf("expected ServerName=redis.internal, got %s", result.ServerName)
	}
	if result.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected MinVersion=TLS12, got %d", result.MinVersion)
	}
}

func TestBuildMutualTLS(t *testing.T) {
	certs := tlstest.New(t)
	result, err := TLSConfig{
		Enabled:  true,
		CAFile:   certs.CAFile,
		CertFile: certs.CertFile,
		KeyFile:  certs.KeyFile,
	}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RootCAs == nil {
		t.Error("expected RootCAs to be set")
	}
	if len(result.Certificates) != 1 {
		t.Errorf("expected 1 client certificate, got %d", len(result.Certificates))
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  TLSConfig
	}{
		{"missing CA", TLSConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"}},
		{"invalid CA", TLSConfig{Enabled: true, CAFile: tlstest.InvalidPEM(t)}},
		{"missing pair", TLSConfig{Enabled: true, CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}},
		{"cert without key", TLSConfig{Enabled: true, CertFile: "cert.pem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := (TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (TLSConfig{KeyFile: "key.pem"}).Validate(); err == nil {
		t.Error("expected error when KeyFile is set without CertFile")
	}
}
