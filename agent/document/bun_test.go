package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

var documentColumns = []string{"id", "name", "kind", "load_id", "content", "status", "uploaded_at", "updated_at"}

func newMockStore(t *testing.T) (*BunStore, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewBunStore(db)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestBunStoreUpload(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO "documents"`).WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Upload(context.Background(), contractx.Document{
		Name:    "rate-confirmation-L100.pdf",
		Kind:    KindRateConfirmation,
		LoadID:  "L100",
		Content: []byte("%PDF"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunStoreUploadValidates(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	_, err := store.Upload(context.Background(), contractx.Document{Kind: KindBillOfLading})
	assert.ErrorIs(t, err, contractx.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunStoreGet(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(documentColumns).
		AddRow("doc-1", "bol.pdf", KindBillOfLading, "L1", []byte("x"), "verified", at, at)
	mock.ExpectQuery(`SELECT .* FROM "documents" AS "d"`).WillReturnRows(rows)

	doc, err := store.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, contractx.DocumentVerified, doc.Status)
	assert.Equal(t, "L1", doc.LoadID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunStoreGetNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM "documents"`).WillReturnRows(sqlmock.NewRows(documentColumns))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, contractx.ErrDocumentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunStoreSetStatus(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE "documents"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "documents"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "documents"`).WillReturnError(errors.New("connection reset"))

	require.NoError(t, store.SetStatus(context.Background(), "doc-1", contractx.DocumentRejected))

	err := store.SetStatus(context.Background(), "missing", contractx.DocumentArchived)
	assert.ErrorIs(t, err, contractx.ErrDocumentNotFound)

	err = store.SetStatus(context.Background(), "doc-1", contractx.DocumentVerified)
	require.Error(t, err)
	assert.NotErrorIs(t, err, contractx.ErrDocumentNotFound)

	assert.ErrorIs(t, store.SetStatus(context.Background(), "doc-1", "lost"), contractx.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunStoreCheck(t *testing.T) {
	t.Parallel()

	sqldb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewBunStore(db)
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	assert.ErrorIs(t, store.Check(context.Background()), contractx.ErrInitialization)
	require.NoError(t, mock.ExpectationsWereMet())
}
