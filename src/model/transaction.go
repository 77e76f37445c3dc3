package model

import (
	"database/sql"
	"errors"
	"time"
)

// ErrTransactionNotFound is returned when the requested id does not exist.
var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is the persistent form of an ingested message. EncryptedPAN
// holds the opaque blob produced by the PAN cipher; no write path is allowed
// to place plaintext in that column. Records are never updated in place.
type Transaction struct {
	ID              int64     `json:"id"`
	MTI             string    `json:"mti"`
	EncryptedPAN    string    `json:"-"`
	ProcessingCode  string    `json:"processing_code"`
	Amount          int64     `json:"amount"`
	TransactionTime string    `json:"transaction_time"`
	TransactionDate string    `json:"transaction_date"`
	RRN             string    `json:"rrn"`
	ResponseCode    string    `json:"response_code"`
	TerminalID      string    `json:"terminal_id"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"created_at"`
}

// Create persists the record, assigning CreatedAt and the generated id.
func (t *Transaction) Create(db *sql.DB) error {
	t.CreatedAt = time.Now().UTC()

	query := `
	INSERT INTO transactions (mti, pan, processing_code, amount, transaction_time, transaction_date, rrn, response_code, terminal_id, currency, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var responseCodeArg interface{}
	if t.ResponseCode != "" {
		responseCodeArg = t.ResponseCode
	}

	res, err := stmt.Exec(
		t.MTI,
		t.EncryptedPAN,
		t.ProcessingCode,
		t.Amount,
		t.TransactionTime,
		t.TransactionDate,
		t.RRN,
		responseCodeArg,
		t.TerminalID,
		t.Currency,
		t.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func GetTransactionByID(db *sql.DB, id int64) (*Transaction, error) {
	query := `
	SELECT id, mti, pan, processing_code, amount, transaction_time, transaction_date,
	       rrn, response_code, terminal_id, currency, created_at
	FROM transactions
	WHERE id = ?`
	row := db.QueryRow(query, id)

	var tx Transaction
	var responseCode sql.NullString
	err := row.Scan(
		&tx.ID, &tx.MTI, &tx.EncryptedPAN, &tx.ProcessingCode, &tx.Amount,
		&tx.TransactionTime, &tx.TransactionDate, &tx.RRN, &responseCode,
		&tx.TerminalID, &tx.Currency, &tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.ResponseCode = responseCode.String
	return &tx, nil
}

// ListTransactions returns one page of records, newest first. The id is the
// tiebreaker for records created within the same timestamp granularity.
func ListTransactions(db *sql.DB, limit, offset int) ([]Transaction, error) {
	query := `
	SELECT id, mti, pan, processing_code, amount, transaction_time, transaction_date,
	       rrn, response_code, terminal_id, currency, created_at
	FROM transactions
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?`

	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var tx Transaction
		var responseCode sql.NullString
		if err := rows.Scan(
			&tx.ID, &tx.MTI, &tx.EncryptedPAN, &tx.ProcessingCode, &tx.Amount,
			&tx.TransactionTime, &tx.TransactionDate, &tx.RRN, &responseCode,
			&tx.TerminalID, &tx.Currency, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		tx.ResponseCode = responseCode.String
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func CountTransactions(db *sql.DB) (int64, error) {
	var total int64
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&total)
	return total, err
}

// DeleteTransaction removes a record by id. Deleting an id that does not
// exist returns ErrTransactionNotFound; a concurrent double delete observes
// the same.
func DeleteTransaction(db *sql.DB, id int64) error {
	result, err := db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
