// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transcript persists conversations in an embedded BadgerDB.
//
// Each conversation is one JSON value under "transcript/<id>". Ids are
// UUIDs assigned on first save, so `chat --resume <id>` can reload a
// conversation and continue it with its history.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/logging"
)

const (
	keyPrefix     = "transcript/"
	maxTitleRunes = 48
)

// ErrNotFound is returned for an unknown transcript id.
var ErrNotFound = errors.New("transcript not found")

// Transcript is a saved conversation.
type Transcript struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Turns     []conversation.Turn `json:"turns"`
}

// Summary describes a transcript without its turns.
type Summary struct {
	ID        string
	Title     string
	Turns     int
	UpdatedAt time.Time
}

// Config configures a Store.
type Config struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// Logger receives badger's own diagnostics. Default: badger logging off.
	Logger *logging.Logger
}

// Store reads and writes transcripts. Safe for concurrent use.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// badgerLogger adapts logging.Logger to badger.Logger.
type badgerLogger struct {
	logger *logging.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

// Open opens the store.
//
// Inputs:
//
//	cfg - Dir is created when missing. InMemory ignores Dir.
//
// Outputs:
//
//	*Store - Call Close when done.
//	error - Non-nil when Dir is empty for a persistent store, or badger
//	        cannot open it (for example, another process holds the lock).
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("transcript: dir is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dir := logging.ExpandPath(cfg.Dir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create transcript directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes t. An empty ID gets a new UUID and CreatedAt; UpdatedAt is
// always refreshed. An empty Title is taken from the first user turn.
func (s *Store) Save(ctx context.Context, t *Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Title == "" {
		t.Title = titleFor(t.Turns)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transcript %s: %w", t.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(t.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save transcript %s: %w", t.ID, err)
	}
	return nil
}

// Load reads one transcript.
func (s *Store) Load(ctx context.Context, id string) (*Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var t Transcript
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", id, err)
	}
	return &t, nil
}

// List returns all transcripts, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var t Transcript
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, Summary{
				ID:        t.ID,
				Title:     t.Title,
				Turns:     len(t.Turns),
				UpdatedAt: t.UpdatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a transcript.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete transcript %s: %w", id, err)
	}
	return nil
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

func titleFor(turns []conversation.Turn) string {
	for _, t := range turns {
		if t.Role != conversation.RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(t.Content), " ")
		if utf8.RuneCountInString(title) > maxTitleRunes {
			title = string([]rune(title)[:maxTitleRunes-1]) + "…"
		}
		return title
	}
	return "(empty)"
}
