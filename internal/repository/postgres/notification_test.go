package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfield/notify-api/internal/model"
	"github.com/openfield/notify-api/internal/repository"
)

func newMockRepo(t *testing.T) (*BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBaseRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreateWithRecipientsCommitsNotificationAndRows(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notification_recipients`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notification_recipients`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &model.Notification{Type: model.NotificationTypeSlotProposal, SenderID: uuid.New()}
	err := repo.CreateWithRecipients(context.Background(), n, []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, model.NotificationStatusPending, n.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithRecipientsRollsBackOnRecipientFailure(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notification_recipients`).
		WillReturnError(fmt.Errorf("foreign key violation"))
	mock.ExpectRollback()

	n := &model.Notification{Type: model.NotificationTypeSlotProposal, SenderID: uuid.New()}
	err := repo.CreateWithRecipients(context.Background(), n, []uuid.UUID{uuid.New()})
	require.Error(t, err)

	// The rollback expectation proves the notification row did not outlive
	// the failed recipient insert.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkClickedFirstClickWinsTheTimestamp(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	nid, uid := uuid.New(), uuid.New()
	clickUpdate := `SET clicked = true,\s*clicked_at = COALESCE\(clicked_at, \$1\)`
	mock.ExpectExec(clickUpdate).
		WithArgs(sqlmock.AnyArg(), nid.String(), uid.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(clickUpdate).
		WithArgs(sqlmock.AnyArg(), nid.String(), uid.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkClicked(context.Background(), nid, uid))
	require.NoError(t, repo.MarkClicked(context.Background(), nid, uid))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkClickedUnknownRowIsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	mock.ExpectExec(`UPDATE notification_recipients`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkClicked(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetRecipientActionOverwritesPreviousResponse(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	nid, uid := uuid.New(), uuid.New()
	// Plain assignment, no COALESCE: the latest action and timestamp win.
	actionUpdate := `SET action = \$1, action_at = \$2\s*WHERE notification_id = \$3 AND user_id = \$4`
	mock.ExpectExec(actionUpdate).
		WithArgs("ACCEPTED", sqlmock.AnyArg(), nid.String(), uid.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(actionUpdate).
		WithArgs("REFUSED", sqlmock.AnyArg(), nid.String(), uid.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetRecipientAction(context.Background(), nid, uid, model.RecipientActionAccepted))
	require.NoError(t, repo.SetRecipientAction(context.Background(), nid, uid, model.RecipientActionRefused))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRecipientActionUnknownRowIsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	mock.ExpectExec(`UPDATE notification_recipients`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetRecipientAction(context.Background(), uuid.New(), uuid.New(), model.RecipientActionAccepted)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateStatusUnknownNotificationIsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewNotificationRepository(base)

	mock.ExpectExec(`UPDATE notifications`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), uuid.New(), model.NotificationStatusRead)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
