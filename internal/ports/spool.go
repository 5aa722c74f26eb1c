package ports

import "github.com/Thomas-Heisig/MODAX/internal/domain"

type SpoolEntryID uint64

// Spool is the on-disk store-and-forward log backing the outbox. Messages
// appended here survive a power cycle and are replayed oldest-first on the
// next boot.
type Spool interface {
	Append(m *domain.Message) (SpoolEntryID, error)
	Iterate(from SpoolEntryID, fn func(id SpoolEntryID, m *domain.Message) error) error
	Commit(upto SpoolEntryID) error
	Stats() SpoolStats
}

type SpoolStats struct {
	OldestUncommitted SpoolEntryID
	LatestAppended    SpoolEntryID
	SizeBytes         int64
}
