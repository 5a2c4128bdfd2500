package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestInvitationRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	viewed := true

	tests := []struct {
		name    string
		status  entities.InvitationStatus
		mock    func(mock sqlmock.Sqlmock)
		want    repositories.UpdateResult
		wantErr bool
	}{
		{
			name:   "pending row is resolved",
			status: entities.InvitationStatusAccepted,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "invitations" SET`).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: repositories.UpdateApplied,
		},
		{
			name:   "already resolved row is stale",
			status: entities.InvitationStatusMissed,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "invitations" SET`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			},
			want: repositories.UpdateStale,
		},
		{
			name:   "missing row is not found",
			status: entities.InvitationStatusDeclined,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "invitations" SET`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
			},
			want: repositories.UpdateNotFound,
		},
		{
			name:   "connection failure is an error",
			status: entities.InvitationStatusCancelled,
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "invitations" SET`).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.mock(mock)

			repo := NewInvitationRepository(db)
			got, err := repo.UpdateStatus(ctx, id, tt.status, repositories.Extra{Viewed: &viewed})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInvitationRepository_UpdateStatus_RejectsPending(t *testing.T) {
	db, mock := newMockDB(t)

	repo := NewInvitationRepository(db)
	_, err := repo.UpdateStatus(context.Background(), uuid.New(), entities.InvitationStatusPending, repositories.Extra{})

	require.ErrorIs(t, err, entities.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewInvitationRepository(db)
	_, err := repo.GetByID(context.Background(), uuid.New())

	require.ErrorIs(t, err, entities.ErrInvitationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepository_Find(t *testing.T) {
	db, mock := newMockDB(t)
	contact := uuid.New()
	first, second := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "invitations" WHERE contact_id = .* ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "caller_id", "contact_id", "status", "created_at"}).
			AddRow(first.String(), uuid.NewString(), contact.String(), "pending", now).
			AddRow(second.String(), uuid.NewString(), contact.String(), "pending", now.Add(-time.Minute)))

	repo := NewInvitationRepository(db)
	got, err := repo.Find(context.Background(), repositories.Filter{
		ContactID: &contact,
		Statuses:  []entities.InvitationStatus{entities.InvitationStatusPending},
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ID)
	assert.Equal(t, entities.InvitationStatusPending, got[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepository_CountActiveByReunion(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	repo := NewInvitationRepository(db)
	n, err := repo.CountActiveByReunion(context.Background(), uuid.New(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepository_MarkEnded_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewInvitationRepository(db)
	err := repo.MarkEnded(context.Background(), uuid.New(), time.Now())

	require.ErrorIs(t, err, entities.ErrInvitationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
