package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

func TestFileSpoolAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSpool(dir)
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}

	m1 := &domain.Message{Channel: domain.ChannelTelemetry, Payload: []byte(`{"n":1}`), Timestamp: 100}
	m2 := &domain.Message{Channel: domain.ChannelTelemetry, Payload: []byte(`{"n":2}`), Timestamp: 200}

	id1, err := s.Append(m1)
	if err != nil || id1 == 0 {
		t.Fatalf("append message 1: %v id=%d", err, id1)
	}
	id2, err := s.Append(m2)
	if err != nil || id2 != id1+1 {
		t.Fatalf("append message 2: %v id=%d", err, id2)
	}

	var seen []uint32
	if err := s.Iterate(1, func(id ports.SpoolEntryID, m *domain.Message) error {
		seen = append(seen, m.Timestamp)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seen) != 2 || seen[0] != 100 || seen[1] != 200 {
		t.Fatalf("expected oldest-first replay of both entries, got %v", seen)
	}

	if err := s.Commit(id2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen and ensure committed metadata and entry ids were persisted.
	s2, err := NewFileSpool(dir)
	if err != nil {
		t.Fatalf("reopen spool: %v", err)
	}
	defer s2.file.Close()

	stats := s2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2+1 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2+1, stats.OldestUncommitted)
	}
}

func TestFileSpoolIterateFrom(t *testing.T) {
	s, err := NewFileSpool(t.TempDir())
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}

	for i := uint32(1); i <= 3; i++ {
		if _, err := s.Append(&domain.Message{Channel: domain.ChannelTelemetry, Timestamp: i}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var ids []ports.SpoolEntryID
	if err := s.Iterate(2, func(id ports.SpoolEntryID, _ *domain.Message) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("expected entries 2 and 3, got %v", ids)
	}
}

func TestFileSpoolTruncatesPartialRecord(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSpool(dir)
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	id1, err := s.Append(&domain.Message{Channel: domain.ChannelTelemetry, Timestamp: 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := s.file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A power loss mid-write leaves a dangling partial record.
	path := filepath.Join(dir, "spool.log")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open for garbage: %v", err)
	}
	if _, err := f.Write([]byte{0xFF, 0xAA, 0x01}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()

	s2, err := NewFileSpool(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer s2.file.Close()

	stats := s2.Stats()
	if stats.LatestAppended != id1 {
		t.Fatalf("expected latest appended %d after truncation, got %d", id1, stats.LatestAppended)
	}

	var count int
	if err := s2.Iterate(1, func(ports.SpoolEntryID, *domain.Message) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("iterate after truncation: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the one intact entry, got %d", count)
	}
}

func TestFileSpoolAppendContinuesAfterReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSpool(dir)
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	id1, _ := s.Append(&domain.Message{Channel: domain.ChannelTelemetry, Timestamp: 1})
	if err := s.writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	s.file.Close()

	s2, err := NewFileSpool(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.file.Close()

	id2, err := s2.Append(&domain.Message{Channel: domain.ChannelTelemetry, Timestamp: 2})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if id2 != id1+1 {
		t.Fatalf("expected ids to continue (%d then %d)", id1, id2)
	}
}
