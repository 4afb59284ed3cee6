package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage persists images on disk and serves them through signed links
// handled by the API itself.
type LocalStorage struct {
	baseDir   string
	signer    *SignedURLSigner
	urlPrefix string
}

// NewLocalStorage ensures the base directory exists. Links produced by
// PresignGet have the form <urlPrefix>/<token>.
func NewLocalStorage(baseDir string, signer *SignedURLSigner, urlPrefix string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if signer == nil {
		return nil, fmt.Errorf("local storage requires a url signer")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, signer: signer, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Put copies r into the file named by key.
func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write upload stream: %w", err)
	}
	return nil
}

// PresignGet returns a signed link that the uploads route can verify.
func (s *LocalStorage) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	token, _, err := s.signer.Generate(key, expiry)
	if err != nil {
		return "", err
	}
	return s.urlPrefix + "/" + token, nil
}

// OpenSigned validates token and opens the referenced file.
func (s *LocalStorage) OpenSigned(token string) (*os.File, string, error) {
	key, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload file: %w", err)
	}
	return file, key, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty object key")
	}
	return filepath.Join(s.baseDir, clean), nil
}
