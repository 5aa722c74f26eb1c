package archive

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

func TestPostgresSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "telemetry")

	samples := []domain.SensorSample{
		{
			Timestamp:     12345,
			DeviceID:      "MODAX_FIELD_001",
			MotorCurrents: [2]float64{1.5, 2.5},
			Temperature:   42.0,
			Vibration:     domain.Vibration{X: 0.1, Y: 0.2, Z: 9.8, Available: true},
		},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO telemetry (device_id, ts, current_1, current_2, temperature, vib_x, vib_y, vib_z, vib_available) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (device_id, ts) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs("MODAX_FIELD_001", int64(12345), 1.5, 2.5, 42.0, 0.1, 0.2, 9.8, true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := sink.WriteBatch(samples); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkWriteBatchMultiRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "telemetry")

	samples := []domain.SensorSample{
		{Timestamp: 100, DeviceID: "n1"},
		{Timestamp: 200, DeviceID: "n1"},
	}

	expectedQuery := regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9),($10,$11,$12,$13,$14,$15,$16,$17,$18)")
	mock.ExpectExec(expectedQuery).
		WillReturnResult(sqlmock.NewResult(2, 2))

	if err := sink.WriteBatch(samples); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkWriteBatchEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "telemetry")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
