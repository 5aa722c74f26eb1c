package spool

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

const recordHeaderLen = 12

// FileSpool is the on-disk store-and-forward log for telemetry messages.
// Entries appended while the broker is unreachable survive a power cycle and
// are replayed oldest-first on the next boot.
type FileSpool struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.SpoolEntryID
	committed ports.SpoolEntryID
	sizeBytes int64
}

func NewFileSpool(dir string) (*FileSpool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "spool.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	s := &FileSpool{
		path:     path,
		metaPath: filepath.Join(dir, "spool.meta"),
		file:     f,
		writer:   bufio.NewWriterSize(f, 64<<10),
	}
	if err := s.bootstrap(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSpool) bootstrap() error {
	if err := s.scanExisting(); err != nil {
		return err
	}
	if err := s.loadCommitted(); err != nil {
		return err
	}
	if s.nextID < s.committed {
		s.nextID = s.committed
	}
	_, err := s.file.Seek(0, io.SeekEnd)
	return err
}

// scanExisting walks the log to recover the last entry id and truncates any
// partial record left by a power loss mid-write.
func (s *FileSpool) scanExisting() error {
	stat, err := os.Stat(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil || stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID ports.SpoolEntryID
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				if err := s.file.Truncate(offset); err != nil {
					return err
				}
				break
			}
			return fmt.Errorf("spool scan header: %w", err)
		}
		id := ports.SpoolEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])
		offset += recordHeaderLen

		if length > 0 {
			if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					if err := s.file.Truncate(offset); err != nil {
						return err
					}
					break
				}
				return fmt.Errorf("spool scan body: %w", err)
			}
			offset += int64(length)
		}
		lastID = id
	}

	if err := s.file.Truncate(offset); err != nil {
		return err
	}
	s.sizeBytes = offset
	s.nextID = lastID
	return nil
}

func (s *FileSpool) loadCommitted() error {
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("spool meta parse: %w", err)
	}
	s.committed = ports.SpoolEntryID(u)
	return nil
}

func (s *FileSpool) Append(m *domain.Message) (ports.SpoolEntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID + 1

	b, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}

	// entry format: [8 bytes id][4 bytes len][len bytes json]
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := s.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := s.writer.Write(b); err != nil {
		return 0, err
	}

	s.nextID = id
	s.sizeBytes += int64(len(b) + len(hdr))

	return id, nil
}

func (s *FileSpool) Iterate(from ports.SpoolEntryID, fn func(id ports.SpoolEntryID, m *domain.Message) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("spool iterate truncated header: %w", err)
			}
			return err
		}
		id := ports.SpoolEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt spool entry: %w", err)
		}
		if id < from {
			continue
		}

		var m domain.Message
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("corrupt spool entry: %w", err)
		}
		if err := fn(id, &m); err != nil {
			return err
		}
	}
}

func (s *FileSpool) Commit(upto ports.SpoolEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upto > s.committed {
		s.committed = upto
	}
	return s.persistMetaLocked()
}

func (s *FileSpool) Stats() ports.SpoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.SpoolStats{
		OldestUncommitted: s.committed + 1,
		LatestAppended:    s.nextID,
		SizeBytes:         s.sizeBytes,
	}
}

func (s *FileSpool) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", s.committed))
	return os.WriteFile(s.metaPath, data, 0o644)
}

var _ ports.Spool = (*FileSpool)(nil)
