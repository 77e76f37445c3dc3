package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClientCreateAndLookup(t *testing.T) {
	db := newTestDB(t)

	client := &APIClient{
		ClientID:     "back-office",
		Name:         "Back office uploader",
		CanRevealPAN: true,
	}
	require.NoError(t, client.HashSecret("a-long-client-secret"))
	require.NoError(t, client.Create(db))
	assert.Greater(t, client.ID, int64(0))

	got, err := GetAPIClientByClientID(db, "back-office")
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)
	assert.Equal(t, "Back office uploader", got.Name)
	assert.True(t, got.CanRevealPAN)

	assert.NoError(t, got.CheckSecret("a-long-client-secret"))
	assert.Error(t, got.CheckSecret("wrong-secret"))

	total, err := CountAPIClients(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestGetAPIClientByClientID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetAPIClientByClientID(db, "nobody")
	assert.ErrorIs(t, err, ErrAPIClientNotFound)
}
