package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrAPIClientNotFound is returned when no client matches the given id.
var ErrAPIClientNotFound = errors.New("api client not found")

// APIClient is an authenticated caller of the API. CanRevealPAN is the
// trust-level flag consumed by the authorization gate: only clients with it
// may request decrypted account numbers.
type APIClient struct {
	ID           int64     `json:"id"`
	ClientID     string    `json:"client_id"`
	Name         string    `json:"name"`
	SecretHash   string    `json:"-"`
	CanRevealPAN bool      `json:"can_reveal_pan"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c *APIClient) HashSecret(secret string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.SecretHash = string(hashed)
	return nil
}

func (c *APIClient) CheckSecret(secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret))
}

func (c *APIClient) Create(db *sql.DB) error {
	c.CreatedAt = time.Now().UTC()

	query := `
	INSERT INTO api_clients (client_id, name, secret_hash, can_reveal_pan, created_at)
	VALUES (?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(c.ClientID, c.Name, c.SecretHash, c.CanRevealPAN, c.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func GetAPIClientByClientID(db *sql.DB, clientID string) (*APIClient, error) {
	query := `
	SELECT id, client_id, name, secret_hash, can_reveal_pan, created_at
	FROM api_clients
	WHERE client_id = ?`
	row := db.QueryRow(query, clientID)

	var client APIClient
	var name sql.NullString
	err := row.Scan(&client.ID, &client.ClientID, &name, &client.SecretHash, &client.CanRevealPAN, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIClientNotFound
		}
		return nil, err
	}
	client.Name = name.String
	return &client, nil
}

func CountAPIClients(db *sql.DB) (int64, error) {
	var total int64
	err := db.QueryRow(`SELECT COUNT(*) FROM api_clients`).Scan(&total)
	return total, err
}
