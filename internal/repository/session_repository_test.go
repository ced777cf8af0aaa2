package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

func newSessionRepoMock(t *testing.T) (*SessionRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSessionRepo(db), mock
}

func scheduledSession(capacity uint32) *model.Session {
	return &model.Session{
		ID:             7,
		StartsAt:       time.Now().UTC().Add(72 * time.Hour),
		TotalCapacity:  capacity,
		BasePriceCents: 800,
	}
}

func TestUpdateScheduleApplied(t *testing.T) {
	repo, mock := newSessionRepoMock(t)

	mock.ExpectExec("UPDATE sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateSchedule(context.Background(), scheduledSession(80)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScheduleNoOpResubmission(t *testing.T) {
	repo, mock := newSessionRepoMock(t)

	// The driver counts changed rows, so submitting the current values
	// matches the row but reports zero. That must read as success, not as
	// a capacity conflict.
	mock.ExpectExec("UPDATE sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT reserved_count FROM sessions").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"reserved_count"}).AddRow(12))

	assert.NoError(t, repo.UpdateSchedule(context.Background(), scheduledSession(80)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScheduleCapacityBelowReserved(t *testing.T) {
	repo, mock := newSessionRepoMock(t)

	mock.ExpectExec("UPDATE sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT reserved_count FROM sessions").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"reserved_count"}).AddRow(60))

	err := repo.UpdateSchedule(context.Background(), scheduledSession(40))
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScheduleMissingSession(t *testing.T) {
	repo, mock := newSessionRepoMock(t)

	mock.ExpectExec("UPDATE sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT reserved_count FROM sessions").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"reserved_count"}))

	err := repo.UpdateSchedule(context.Background(), scheduledSession(80))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
