package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var dupErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))
	assert.Same(t, ErrNotFound, Wrap("op", ErrNotFound))
	assert.ErrorIs(t, Wrap("op", context.Canceled), context.Canceled)
	assert.ErrorIs(t, Wrap("op", context.DeadlineExceeded), ErrStorageTimeout)

	boom := errors.New("boom")
	err := Wrap("op", boom)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "op")
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}

func TestUserRepo_GetByDeviceID(t *testing.T) {
	db, mock := newMock(t)
	r := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(q("SELECT id, device_id, created_at FROM users WHERE device_id=? LIMIT 1")).
		WithArgs("dev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "device_id", "created_at"}).AddRow("u1", "dev-1", now))
	u, err := r.GetByDeviceID(context.Background(), " dev-1 ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	mock.ExpectQuery(q("SELECT id, device_id, created_at FROM users")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	_, err = r.GetByDeviceID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	r := NewUserRepo(db)

	mock.ExpectExec(q("INSERT INTO users (id, device_id, created_at) VALUES (?,?,?)")).
		WithArgs("u1", "dev-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.Create(context.Background(), model.User{ID: "u1", DeviceID: "dev-1", CreatedAt: time.Now()}))

	mock.ExpectExec(q("INSERT INTO users")).WillReturnError(dupErr)
	err := r.Create(context.Background(), model.User{ID: "u2", DeviceID: "dev-1", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSessionRepo_StoresHashOnly(t *testing.T) {
	db, mock := newMock(t)
	r := NewSessionRepo(db)
	now := time.Now().UTC()
	s := model.Session{Token: "raw-token", UserID: "u1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}

	mock.ExpectExec(q("INSERT INTO sessions (token_hash, user_id, issued_at, expires_at) VALUES (?,?,?,?)")).
		WithArgs(HashToken("raw-token"), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.Put(context.Background(), s))

	cols := []string{"user_id", "issued_at", "expires_at", "revoked_at"}
	mock.ExpectQuery(q("FROM sessions WHERE token_hash=?")).
		WithArgs(HashToken("raw-token")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", now, now.Add(time.Hour), nil))
	got, err := r.Get(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "raw-token", got.Token)

	mock.ExpectQuery(q("FROM sessions WHERE token_hash=?")).
		WithArgs(HashToken("raw-token")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", now, now.Add(time.Hour), now))
	_, err = r.Get(context.Background(), "raw-token")
	assert.ErrorIs(t, err, ErrNotFound, "revoked sessions are not found")
}

func TestSessionRepo_DeleteAndPurge(t *testing.T) {
	db, mock := newMock(t)
	r := NewSessionRepo(db)

	mock.ExpectExec(q("UPDATE sessions SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL")).
		WithArgs(HashToken("t")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, r.Delete(context.Background(), "t"))

	mock.ExpectExec(q("DELETE FROM sessions WHERE expires_at < ?")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := r.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestSaveRepo_CompareAndSwap(t *testing.T) {
	db, mock := newMock(t)
	r := NewSaveRepo(db)
	now := time.Now().UTC()
	payload := json.RawMessage(`{"gems":150}`)
	update := q("UPDATE game_states SET payload = ?, version = version + 1, updated_at = ? WHERE user_id = ? AND version = ?")

	mock.ExpectExec(update).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "u1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	gs, err := r.CompareAndSwap(context.Background(), "u1", 0, payload, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gs.Version)
	assert.JSONEq(t, `{"gems":150}`, string(gs.Payload))

	// stale version
	mock.ExpectExec(update).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "u1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT version FROM game_states WHERE user_id = ?")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
	_, err = r.CompareAndSwap(context.Background(), "u1", 0, payload, now)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// no row at all
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT version FROM game_states")).WillReturnError(sql.ErrNoRows)
	_, err = r.CompareAndSwap(context.Background(), "ghost", 0, payload, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRepo_GetCreate(t *testing.T) {
	db, mock := newMock(t)
	r := NewSaveRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(q("SELECT user_id, payload, version, updated_at FROM game_states WHERE user_id = ?")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "payload", "version", "updated_at"}).
			AddRow("u1", []byte(`{"gems":100}`), int64(4), now))
	gs, err := r.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, gs.Version)
	assert.JSONEq(t, `{"gems":100}`, string(gs.Payload))

	mock.ExpectExec(q("INSERT INTO game_states (user_id, payload, version, updated_at) VALUES (?, ?, ?, ?)")).
		WillReturnError(dupErr)
	err = r.Create(context.Background(), model.GameState{UserID: "u1", Payload: json.RawMessage(`{}`), UpdatedAt: now})
	assert.ErrorIs(t, err, ErrConflict)

	mock.ExpectQuery(q("FROM game_states WHERE user_id = ?")).WillReturnError(context.DeadlineExceeded)
	_, err = r.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrStorageTimeout)
}

func purchaseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"transaction_id", "user_id", "product_id", "platform", "verified", "recorded_at"})
}

func TestPurchaseRepo_ApplyNew(t *testing.T) {
	db, mock := newMock(t)
	r := NewPurchaseRepo(db)
	now := time.Now().UTC()
	rec := model.PurchaseRecord{TransactionID: "tx1", UserID: "u1", ProductID: "gems_50", Platform: "android", Verified: true, RecordedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO purchases (" + purchaseColumns + ") VALUES (?, ?, ?, ?, ?, ?)")).
		WithArgs("tx1", "u1", "gems_50", "android", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT payload FROM game_states WHERE user_id = ? FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"gems":150}`)))
	mock.ExpectExec(q("UPDATE game_states SET payload = ?, version = version + 1, updated_at = ? WHERE user_id = ?")).
		WithArgs([]byte(`{"gems":200}`), sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, created, err := r.Apply(context.Background(), rec, func(p json.RawMessage) (json.RawMessage, error) {
		assert.JSONEq(t, `{"gems":150}`, string(p))
		return json.RawMessage(`{"gems":200}`), nil
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tx1", got.TransactionID)
}

func TestPurchaseRepo_ApplyDuplicateReturnsStored(t *testing.T) {
	db, mock := newMock(t)
	r := NewPurchaseRepo(db)
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO purchases")).WillReturnError(dupErr)
	mock.ExpectRollback()
	mock.ExpectQuery(q("FROM purchases WHERE transaction_id = ?")).
		WithArgs("tx1").
		WillReturnRows(purchaseRows().AddRow("tx1", "u1", "gems_50", "android", true, first))

	called := false
	got, created, err := r.Apply(context.Background(),
		model.PurchaseRecord{TransactionID: "tx1", UserID: "u1", ProductID: "gems_500", RecordedAt: time.Now()},
		func(p json.RawMessage) (json.RawMessage, error) { called = true; return p, nil })
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, called, "grant must not run for a duplicate")
	assert.Equal(t, "gems_50", got.ProductID)
	assert.True(t, got.RecordedAt.Equal(first))
}

func TestPurchaseRepo_ApplyGrantErrorRollsBack(t *testing.T) {
	db, mock := newMock(t)
	r := NewPurchaseRepo(db)
	boom := errors.New("bad payload")

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO purchases")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`[]`)))
	mock.ExpectRollback()

	_, _, err := r.Apply(context.Background(),
		model.PurchaseRecord{TransactionID: "tx1", UserID: "u1", RecordedAt: time.Now()},
		func(json.RawMessage) (json.RawMessage, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestPurchaseRepo_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	r := NewPurchaseRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM purchases WHERE user_id = ? ORDER BY recorded_at, transaction_id")).
		WithArgs("u1").
		WillReturnRows(purchaseRows().
			AddRow("tx1", "u1", "gems_50", "android", true, now).
			AddRow("tx2", "u1", "premium", "ios", true, now.Add(time.Second)))
	list, err := r.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tx2", list[1].TransactionID)
}
