// Package storage persists each domain's scheduled sessions.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"

	"tsay-bot/pkg/club"
)

const sessionsObject = "sessions.json"

var namespaceRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrInvalidNamespace is returned for namespaces that are not safe to use as a path segment.
var ErrInvalidNamespace = errors.New("invalid namespace")

// Store keeps session lists as JSON documents, either on the local filesystem
// or in a Cloud Storage bucket.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
}

// New creates a new storage handler. A non-empty localPath selects the local filesystem.
func New(client *storage.Client, bucket string, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
	}
}

type document struct {
	Sessions []club.Session `json:"sessions"`
}

// SessionsKey returns the object key holding a namespace's sessions, or "" if
// the namespace is not a safe path segment.
func SessionsKey(namespace string) string {
	if !namespaceRegex.MatchString(namespace) {
		return ""
	}
	return namespace + "/" + sessionsObject
}

// ReadAll returns the stored sessions in insertion order. A namespace with no
// data yet yields an empty list.
func (s *Store) ReadAll(ctx context.Context, namespace string) ([]club.Session, error) {
	key := SessionsKey(namespace)
	if key == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}

	var data []byte

	// Local filesystem storage
	if s.localPath != "" {
		var err error
		data, err = os.ReadFile(filepath.Join(s.localPath, filepath.FromSlash(key)))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
	} else {
		// Cloud Storage with retry logic for reliability
		missing := false
		err := retry.Do(
			func() error {
				r, openErr := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
				if openErr != nil {
					if errors.Is(openErr, storage.ErrObjectNotExist) {
						missing = true
						return retry.Unrecoverable(fmt.Errorf("open storage reader: %w", openErr))
					}
					return fmt.Errorf("open storage reader: %w", openErr)
				}
				defer func() {
					if closeErr := r.Close(); closeErr != nil {
						s.logger.Warn("Failed to close storage reader", "error", closeErr)
					}
				}()

				var readErr error
				data, readErr = io.ReadAll(r)
				if readErr != nil {
					return fmt.Errorf("read from storage: %w", readErr)
				}
				return nil
			},
			retry.Attempts(3),
			retry.Delay(time.Second),
			retry.MaxDelay(2*time.Minute),
			retry.MaxJitter(10*time.Second),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, retryErr error) {
				s.logger.Info("Retrying load operation after error", "attempt", n, "key", key, "error", retryErr)
			}),
		)
		if missing {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load after retries: %w", err)
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal sessions: %w", err)
	}
	return doc.Sessions, nil
}

// WriteAll replaces the stored sessions with the given list.
func (s *Store) WriteAll(ctx context.Context, namespace string, sessions []club.Session) error {
	key := SessionsKey(namespace)
	if key == "" {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	if sessions == nil {
		sessions = []club.Session{}
	}

	data, err := json.MarshalIndent(document{Sessions: sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	data = append(data, '\n')

	// Local filesystem storage
	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return fmt.Errorf("create namespace directory: %w", err)
		}
		tmp := filePath + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		if err := os.Rename(tmp, filePath); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("commit local storage: %w", err)
		}

		s.logger.Debug("Sessions saved to local storage", "path", filePath, "count", len(sessions))
		return nil
	}

	// Cloud Storage with retry logic for reliability
	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Debug("Sessions saved", "key", key, "count", len(sessions))
	return nil
}

// Namespaces lists the namespaces that have stored sessions.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	var names []string

	// Local filesystem storage
	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || SessionsKey(entry.Name()) == "" {
				continue
			}
			if _, err := os.Stat(filepath.Join(s.localPath, entry.Name(), sessionsObject)); err != nil {
				continue
			}
			names = append(names, entry.Name())
		}
		return names, nil
	}

	// Cloud Storage
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		if attrs.Prefix == "" {
			continue
		}
		if name := strings.TrimSuffix(attrs.Prefix, "/"); SessionsKey(name) != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
