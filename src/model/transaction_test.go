package model

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := []string{
		`CREATE TABLE transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mti TEXT NOT NULL DEFAULT '',
			pan TEXT NOT NULL,
			processing_code TEXT NOT NULL,
			amount INTEGER NOT NULL,
			transaction_time TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			rrn TEXT NOT NULL,
			response_code TEXT,
			terminal_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE api_clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id TEXT NOT NULL UNIQUE,
			name TEXT,
			secret_hash TEXT NOT NULL,
			can_reveal_pan BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func newTestTransaction(rrn string) *Transaction {
	return &Transaction{
		MTI:             "0200",
		EncryptedPAN:    "b3BhcXVlIGJsb2I=::unused",
		ProcessingCode:  "000000",
		Amount:          150000,
		TransactionTime: "134512",
		TransactionDate: "0830",
		RRN:             rrn,
		ResponseCode:    "00",
		TerminalID:      "TERM0001",
		Currency:        "840",
	}
}

func TestTransactionCreateAndGet(t *testing.T) {
	db := newTestDB(t)

	tx := newTestTransaction("123456789012")
	require.NoError(t, tx.Create(db))
	assert.Greater(t, tx.ID, int64(0))
	assert.False(t, tx.CreatedAt.IsZero())

	got, err := GetTransactionByID(db, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, "0200", got.MTI)
	assert.Equal(t, tx.EncryptedPAN, got.EncryptedPAN)
	assert.Equal(t, "000000", got.ProcessingCode)
	assert.Equal(t, int64(150000), got.Amount)
	assert.Equal(t, "134512", got.TransactionTime)
	assert.Equal(t, "0830", got.TransactionDate)
	assert.Equal(t, "123456789012", got.RRN)
	assert.Equal(t, "00", got.ResponseCode)
	assert.Equal(t, "TERM0001", got.TerminalID)
	assert.Equal(t, "840", got.Currency)
}

func TestTransactionCreate_EmptyResponseCodeStoredAsNull(t *testing.T) {
	db := newTestDB(t)

	tx := newTestTransaction("123456789012")
	tx.ResponseCode = ""
	require.NoError(t, tx.Create(db))

	var responseCode sql.NullString
	err := db.QueryRow(`SELECT response_code FROM transactions WHERE id = ?`, tx.ID).Scan(&responseCode)
	require.NoError(t, err)
	assert.False(t, responseCode.Valid)

	got, err := GetTransactionByID(db, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.ResponseCode)
}

func TestTransactionIDsAreMonotonicallyIncreasingAndNotReused(t *testing.T) {
	db := newTestDB(t)

	first := newTestTransaction("rrn-1")
	require.NoError(t, first.Create(db))
	second := newTestTransaction("rrn-2")
	require.NoError(t, second.Create(db))
	assert.Greater(t, second.ID, first.ID)

	// Deleting the latest record must not free its id for reuse.
	require.NoError(t, DeleteTransaction(db, second.ID))
	third := newTestTransaction("rrn-3")
	require.NoError(t, third.Create(db))
	assert.Greater(t, third.ID, second.ID)
}

func TestGetTransactionByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetTransactionByID(db, 9999)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestListTransactions_NewestFirst(t *testing.T) {
	db := newTestDB(t)

	for i := 1; i <= 3; i++ {
		tx := newTestTransaction(fmt.Sprintf("rrn-%d", i))
		require.NoError(t, tx.Create(db))
	}

	list, err := ListTransactions(db, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "rrn-3", list[0].RRN)
	assert.Equal(t, "rrn-2", list[1].RRN)
	assert.Equal(t, "rrn-1", list[2].RRN)
}

func TestListTransactions_Pagination(t *testing.T) {
	db := newTestDB(t)

	for i := 1; i <= 25; i++ {
		tx := newTestTransaction(fmt.Sprintf("rrn-%02d", i))
		require.NoError(t, tx.Create(db))
	}

	total, err := CountTransactions(db)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)

	// Page 1: the 10 newest records.
	page1, err := ListTransactions(db, 10, 0)
	require.NoError(t, err)
	require.Len(t, page1, 10)
	assert.Equal(t, "rrn-25", page1[0].RRN)
	assert.Equal(t, "rrn-16", page1[9].RRN)

	// Page 3: the 5 oldest.
	page3, err := ListTransactions(db, 10, 20)
	require.NoError(t, err)
	require.Len(t, page3, 5)
	assert.Equal(t, "rrn-05", page3[0].RRN)
	assert.Equal(t, "rrn-01", page3[4].RRN)

	// Page 4: beyond the last page, empty but not an error.
	page4, err := ListTransactions(db, 10, 30)
	require.NoError(t, err)
	assert.Len(t, page4, 0)
}

func TestDeleteTransaction_Idempotence(t *testing.T) {
	db := newTestDB(t)

	tx := newTestTransaction("123456789012")
	require.NoError(t, tx.Create(db))

	assert.ErrorIs(t, DeleteTransaction(db, 9999), ErrTransactionNotFound)

	require.NoError(t, DeleteTransaction(db, tx.ID))
	assert.ErrorIs(t, DeleteTransaction(db, tx.ID), ErrTransactionNotFound)

	_, err := GetTransactionByID(db, tx.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
