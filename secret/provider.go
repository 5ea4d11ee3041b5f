package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves refs as environment variable names.
//
//	secretref:env:TOKENAUTH_SIGNING_KEY
type EnvProvider struct{}

// Name implements Provider.
func (EnvProvider) Name() string { return "env" }

// Resolve implements Provider.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close implements Provider.
func (EnvProvider) Close() error { return nil }

// FileProvider resolves refs as file paths, relative to Dir when set.
// Trailing newlines are stripped, which suits mounted secret files.
//
//	secretref:file:signing_key
type FileProvider struct {
	Dir string
}

// Name implements Provider.
func (FileProvider) Name() string { return "file" }

// Resolve implements Provider.
func (p FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ref
	if p.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(p.Dir, path)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// Close implements Provider.
func (FileProvider) Close() error { return nil }

// DotenvProvider resolves refs as keys of a .env file read once at creation.
// Unlike godotenv.Load it never touches the process environment.
//
//	secretref:dotenv:SIGNING_KEY
type DotenvProvider struct {
	values map[string]string
}

// NewDotenvProvider reads the given .env files; later files win.
func NewDotenvProvider(paths ...string) (*DotenvProvider, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	values := make(map[string]string)
	for _, path := range paths {
		m, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("secret: read dotenv %s: %w", path, err)
		}
		for k, v := range m {
			values[k] = v
		}
	}
	return &DotenvProvider{values: values}, nil
}

// Name implements Provider.
func (*DotenvProvider) Name() string { return "dotenv" }

// Resolve implements Provider.
func (p *DotenvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.values[ref]
	if !ok {
		return "", fmt.Errorf("%w: dotenv %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close implements Provider.
func (*DotenvProvider) Close() error { return nil }
