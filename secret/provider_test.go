package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("TOKENAUTH_TEST_SECRET", "s3cret")
	p := EnvProvider{}

	if v, err := p.Resolve(context.Background(), "TOKENAUTH_TEST_SECRET"); err != nil || v != "s3cret" {
		t.Fatalf("Resolve() = %q, %v", v, err)
	}
	if _, err := p.Resolve(context.Background(), "TOKENAUTH_TEST_UNSET_VAR"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Resolve(unset) error = %v", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	if err := os.WriteFile(path, []byte("line one\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	rel := FileProvider{Dir: dir}
	if v, err := rel.Resolve(context.Background(), "key"); err != nil || v != "line one" {
		t.Fatalf("Resolve(relative) = %q, %v", v, err)
	}
	if v, err := (FileProvider{}).Resolve(context.Background(), path); err != nil || v != "line one" {
		t.Fatalf("Resolve(absolute) = %q, %v", v, err)
	}
	if _, err := rel.Resolve(context.Background(), "nope"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Resolve(missing) error = %v", err)
	}
}

func TestDotenvProvider(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.env")
	second := filepath.Join(dir, "b.env")
	_ = os.WriteFile(first, []byte("A=1\nSHARED=first\n"), 0o600)
	_ = os.WriteFile(second, []byte("SHARED=second\n"), 0o600)

	p, err := NewDotenvProvider(first, second)
	if err != nil {
		t.Fatalf("NewDotenvProvider() error = %v", err)
	}
	if v, _ := p.Resolve(context.Background(), "SHARED"); v != "second" {
		t.Errorf("SHARED = %q, want later file to win", v)
	}
	if v, _ := p.Resolve(context.Background(), "A"); v != "1" {
		t.Errorf("A = %q", v)
	}
	if _, err := p.Resolve(context.Background(), "B"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Resolve(B) error = %v", err)
	}
	if _, ok := os.LookupEnv("SHARED"); ok {
		t.Error("dotenv provider must not modify the environment")
	}

	if _, err := NewDotenvProvider(filepath.Join(dir, "missing.env")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
