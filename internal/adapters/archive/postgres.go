// Package archive persists telemetry samples to PostgreSQL for offline
// analysis. It is optional: nodes without a database simply leave it
// disabled and telemetry flows to MQTT only.
package archive

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

type PostgresSink struct {
	db    *sql.DB
	table string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, table: table}
}

// Open dials the database and pings it so a bad conn string fails at
// startup rather than on the first flush.
func Open(connString, table string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	return NewPostgresSink(db, table), nil
}

func (p *PostgresSink) Close() error { return p.db.Close() }

// WriteBatch inserts samples in a single multi-row statement. The unique
// key on (device_id, ts) makes spool replays idempotent.
func (p *PostgresSink) WriteBatch(samples []domain.SensorSample) error {
	if len(samples) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.table)
	b.WriteString(" (device_id, ts, current_1, current_2, temperature, vib_x, vib_y, vib_z, vib_available) VALUES ")

	args := make([]any, 0, len(samples)*9)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5,
			len(args)+6, len(args)+7, len(args)+8, len(args)+9))
		args = append(args,
			s.DeviceID,
			int64(s.Timestamp),
			s.MotorCurrents[0],
			s.MotorCurrents[1],
			s.Temperature,
			s.Vibration.X,
			s.Vibration.Y,
			s.Vibration.Z,
			s.Vibration.Available,
		)
	}

	b.WriteString(" ON CONFLICT (device_id, ts) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}
