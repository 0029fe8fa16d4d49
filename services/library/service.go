// Package library persists downloaded media: metadata rows in the index
// database, payload bytes as files on the provided filesystem.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mozillazg/go-unidecode"
	"github.com/spf13/afero"

	"streambox/models"
)

var (
	ErrStorage      = errors.New("library storage fault")
	ErrNotFound     = errors.New("cached media not found")
	ErrNameRequired = errors.New("name is required")
	ErrEmptyPayload = errors.New("payload is empty")
)

// Service owns all cached media entries. Entries are created by Put, listed
// newest first, and removed by Delete; nothing else mutates them.
type Service struct {
	db  *sql.DB
	fs  afero.Fs
	dir string

	idMu   sync.Mutex
	lastID int64 // last issued id timestamp, bumped on same-millisecond puts
}

// NewService creates a library storing payload files under dir on fs and
// metadata in db (schema managed by internal/database).
func NewService(db *sql.DB, fs afero.Fs, dir string) (*Service, error) {
	if db == nil {
		return nil, errors.New("database not provided")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("payload directory not provided")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload dir: %w", err)
	}
	return &Service{db: db, fs: fs, dir: dir}, nil
}

// nextID issues a fresh time-based id. Two puts landing on the same
// millisecond get strictly increasing values, so ids never collide within
// the process lifetime. The timestamp doubles as the entry's creation time
// so listing order matches issue order exactly.
func (s *Service) nextID() (string, int64) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	now := time.Now().UnixMilli()
	if now <= s.lastID {
		now = s.lastID + 1
	}
	s.lastID = now
	return fmt.Sprintf("v_%d", now), now
}

// Put writes a new entry and returns its metadata. The payload file is
// written before the row is inserted: a visible row always has its payload,
// and an insert failure unlinks the file again.
func (s *Service) Put(ctx context.Context, name string, payload []byte) (models.CachedMedia, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.CachedMedia{}, ErrNameRequired
	}
	if len(payload) == 0 {
		return models.CachedMedia{}, ErrEmptyPayload
	}

	id, createdMs := s.nextID()
	mime := mimetype.Detect(payload).String()
	payloadFile := id + "_" + sanitizeFileName(name)
	createdAt := time.UnixMilli(createdMs).UTC()

	fullPath := filepath.Join(s.dir, payloadFile)
	if err := afero.WriteFile(s.fs, fullPath, payload, 0o644); err != nil {
		return models.CachedMedia{}, storageFault("write payload", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (id, name, mime_type, size_bytes, payload_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, mime, int64(len(payload)), payloadFile, createdMs,
	)
	if err != nil {
		if rmErr := s.fs.Remove(fullPath); rmErr != nil {
			log.Printf("[library] orphaned payload %s after failed insert: %v", payloadFile, rmErr)
		}
		return models.CachedMedia{}, storageFault("insert media", err)
	}

	log.Printf("[library] stored %s name=%q size=%d mime=%s", id, name, len(payload), mime)

	return models.CachedMedia{
		ID:        id,
		Name:      name,
		MIMEType:  mime,
		Size:      int64(len(payload)),
		CreatedAt: createdAt,
		Payload:   payload,
	}, nil
}

// Get returns the entry with its full payload, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.CachedMedia, error) {
	item, payloadFile, err := s.row(ctx, id)
	if err != nil {
		return models.CachedMedia{}, err
	}

	payload, err := afero.ReadFile(s.fs, filepath.Join(s.dir, payloadFile))
	if err != nil {
		return models.CachedMedia{}, storageFault("read payload", err)
	}
	item.Payload = payload
	return item, nil
}

// Open returns the entry's metadata plus a reader over its payload, for
// streaming without buffering the whole file.
func (s *Service) Open(ctx context.Context, id string) (models.CachedMedia, io.ReadCloser, error) {
	item, payloadFile, err := s.row(ctx, id)
	if err != nil {
		return models.CachedMedia{}, nil, err
	}

	f, err := s.fs.Open(filepath.Join(s.dir, payloadFile))
	if err != nil {
		return models.CachedMedia{}, nil, storageFault("open payload", err)
	}
	return item, f, nil
}

// List returns a fresh metadata snapshot ordered by creation time, newest
// first. Payloads are not loaded.
func (s *Service) List(ctx context.Context) ([]models.CachedMedia, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, mime_type, size_bytes, created_at
		 FROM media ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageFault("list media", err)
	}
	defer rows.Close()

	items := make([]models.CachedMedia, 0)
	for rows.Next() {
		var item models.CachedMedia
		var createdMs int64
		if err := rows.Scan(&item.ID, &item.Name, &item.MIMEType, &item.Size, &createdMs); err != nil {
			return nil, storageFault("scan media row", err)
		}
		item.CreatedAt = time.UnixMilli(createdMs).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault("list media", err)
	}
	return items, nil
}

// Delete removes the entry. Deleting an unknown id is a no-op, never an
// error; only an underlying I/O fault is surfaced.
func (s *Service) Delete(ctx context.Context, id string) error {
	var payloadFile string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_file FROM media WHERE id = ?`, id).Scan(&payloadFile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storageFault("lookup media", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id); err != nil {
		return storageFault("delete media", err)
	}

	// The row is gone; a leftover payload file is invisible and harmless.
	if err := s.fs.Remove(filepath.Join(s.dir, payloadFile)); err != nil {
		log.Printf("[library] remove payload for %s: %v", id, err)
	}

	log.Printf("[library] deleted %s", id)
	return nil
}

func (s *Service) row(ctx context.Context, id string) (models.CachedMedia, string, error) {
	var item models.CachedMedia
	var payloadFile string
	var createdMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, mime_type, size_bytes, payload_file, created_at
		 FROM media WHERE id = ?`, id).
		Scan(&item.ID, &item.Name, &item.MIMEType, &item.Size, &payloadFile, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CachedMedia{}, "", ErrNotFound
	}
	if err != nil {
		return models.CachedMedia{}, "", storageFault("lookup media", err)
	}
	item.CreatedAt = time.UnixMilli(createdMs).UTC()
	return item, payloadFile, nil
}

func storageFault(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}

// sanitizeFileName turns a display name into something safe to use as a file
// name: transliterate to ASCII, collapse whitespace to underscores, drop
// everything outside [A-Za-z0-9._-].
func sanitizeFileName(name string) string {
	ascii := unidecode.Unidecode(name)
	var b strings.Builder
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '\t':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		out = "media"
	}
	return out
}
