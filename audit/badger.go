// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/absmach/courier/dispatch"
	"github.com/dgraph-io/badger/v4"
)

// Key layout: audit:{trackingID}:{seq}. The sequence is a process-wide
// monotonic counter, so events for one tracking id iterate in record order.
const badgerKeyPrefix = "audit:"

// BadgerConfig holds badger sink settings.
type BadgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// BadgerSink archives audit events in BadgerDB, queryable by tracking id.
// Unlike the engine's in-memory ledger the archive survives restarts.
type BadgerSink struct {
	db     *badger.DB
	seq    atomic.Uint64
	logger *slog.Logger
}

// NewBadgerSink opens (or creates) a badger archive in dir.
func NewBadgerSink(dir string, logger *slog.Logger) (*BadgerSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit archive: %w", err)
	}

	return &BadgerSink{db: db, logger: logger}, nil
}

// Record implements dispatch.AuditSink.
func (s *BadgerSink) Record(ev dispatch.AuditEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal audit event",
			slog.String("tracking_id", ev.TrackingID),
			slog.String("error", err.Error()))
		return
	}

	key := fmt.Sprintf("%s%s:%020d", badgerKeyPrefix, ev.TrackingID, s.seq.Add(1))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		s.logger.Error("failed to archive audit event",
			slog.String("tracking_id", ev.TrackingID),
			slog.String("error", err.Error()))
	}
}

// ByTrackingID returns the archived events for one tracking id in record
// order. An unknown id yields an empty slice, not an error.
func (s *BadgerSink) ByTrackingID(trackingID string) ([]dispatch.AuditEvent, error) {
	prefix := []byte(badgerKeyPrefix + trackingID + ":")
	var events []dispatch.AuditEvent

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var ev dispatch.AuditEvent
				if err := json.Unmarshal(val, &ev); err != nil {
					return err
				}
				events = append(events, ev)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit archive: %w", err)
	}

	return events, nil
}

// Close closes the underlying database.
func (s *BadgerSink) Close() error {
	return s.db.Close()
}
