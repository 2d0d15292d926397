// Package blob stores opaque assets on disk and issues time-bounded download handles.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidRef    = errors.New("invalid blob reference")
	ErrInvalidHandle = errors.New("invalid download handle")
	ErrExpiredHandle = errors.New("download handle expired")
)

type handleClaims struct {
	Ref string `json:"ref"`
	jwt.RegisteredClaims
}

// Store keeps blobs under a root directory. Refs are slash-separated paths relative to it.
type Store struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewStore(root, baseURL, secret string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

// Upload writes r under prefix and returns the new ref.
// The ref keeps the original file name after a unique stem: <prefix>/<unixMillis>_<name>.
func (s *Store) Upload(_ context.Context, prefix, name string, r io.Reader) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = uuid.NewString()
	}
	ref := path.Join(cleanPrefix(prefix), fmt.Sprintf("%d_%s", s.now().UnixMilli(), name))
	full, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", err
	}
	return ref, nil
}

// Delete removes a blob; a missing blob is not an error.
func (s *Store) Delete(_ context.Context, ref string) error {
	full, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Open returns the absolute path of an existing blob.
func (s *Store) Open(ref string) (string, error) {
	full, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}

// IssueHandle returns a download URL valid for ttl.
func (s *Store) IssueHandle(_ context.Context, ref string, ttl time.Duration) (string, time.Time, error) {
	if _, err := s.resolve(ref); err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := handleClaims{
		Ref: ref,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/v1/blobs/download?token=" + url.QueryEscape(token), exp, nil
}

// VerifyHandle returns the ref a download token grants access to.
func (s *Store) VerifyHandle(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &handleClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidHandle
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredHandle
		}
		return "", ErrInvalidHandle
	}
	claims, ok := parsed.Claims.(*handleClaims)
	if !ok || !parsed.Valid || claims.Ref == "" {
		return "", ErrInvalidHandle
	}
	return claims.Ref, nil
}

func (s *Store) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if ref == "" || clean == "/" || strings.Contains(ref, "..") {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func cleanPrefix(prefix string) string {
	p := strings.Trim(path.Clean("/"+prefix), "/")
	if p == "" || p == "." {
		return "misc"
	}
	return p
}
