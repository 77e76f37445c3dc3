package services

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/isovault/backend/src/logger"
	"github.com/username/isovault/backend/src/model"
	"github.com/username/isovault/backend/src/parsers/iso8583"
	"github.com/username/isovault/backend/src/security"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestService(t *testing.T) (TransactionService, *sql.DB, *security.PANCipher) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE transactions (
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
	)`)
	require.NoError(t, err)

	key := []byte("0123456789abcdef0123456789abcdef")
	panCipher, err := security.NewPANCipher(key)
	require.NoError(t, err)

	listCache := cache.New(time.Minute, time.Minute)
	svc := NewTransactionService(db, iso8583.NewParser(), panCipher, listCache)
	return svc, db, panCipher
}

func sampleXML(pan, rrn string) []byte {
	return []byte(fmt.Sprintf(`<isomsg direction="incoming">
		<field id="0" value="0200"/>
		<field id="2" value="%s"/>
		<field id="3" value="000000"/>
		<field id="4" value="150000"/>
		<field id="12" value="134512"/>
		<field id="13" value="0830"/>
		<field id="37" value="%s"/>
		<field id="39" value="00"/>
		<field id="41" value="TERM0001"/>
		<field id="49" value="840"/>
	</isomsg>`, pan, rrn))
}

func TestIngestMessage_EncryptsPANAtRest(t *testing.T) {
	svc, db, panCipher := newTestService(t)

	const pan = "4000510010065678"
	id, err := svc.IngestMessage(sampleXML(pan, "123456789012"))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	var storedPAN string
	require.NoError(t, db.QueryRow(`SELECT pan FROM transactions WHERE id = ?`, id).Scan(&storedPAN))
	assert.NotEqual(t, pan, storedPAN, "pan column must never contain plaintext")
	assert.NotContains(t, storedPAN, pan)

	decrypted, err := panCipher.Decrypt(storedPAN)
	require.NoError(t, err)
	assert.Equal(t, pan, decrypted)
}

func TestIngestMessage_InvalidMessageCreatesNoRecord(t *testing.T) {
	svc, db, _ := newTestService(t)

	_, err := svc.IngestMessage([]byte(`<isomsg><field id="2" value="4000510010065678"/></isomsg>`))
	var validationErr *iso8583.ValidationError
	require.ErrorAs(t, err, &validationErr)

	total, err := model.CountTransactions(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestGetTransaction_MaskingAndReveal(t *testing.T) {
	svc, _, _ := newTestService(t)

	const pan = "4000510010065678"
	id, err := svc.IngestMessage(sampleXML(pan, "123456789012"))
	require.NoError(t, err)

	masked, err := svc.GetTransaction(id, false)
	require.NoError(t, err)
	assert.Equal(t, "4000****5678", masked.PAN)
	assert.Empty(t, masked.PANFull)
	assert.Equal(t, "0200", masked.MTI)
	assert.Equal(t, int64(150000), masked.Amount)
	assert.NotEmpty(t, masked.CreatedAt)

	revealed, err := svc.GetTransaction(id, true)
	require.NoError(t, err)
	assert.Equal(t, "4000****5678", revealed.PAN)
	assert.Equal(t, pan, revealed.PANFull)
}

func TestGetTransaction_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetTransaction(9999, false)
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)
}

func TestGetTransaction_CorruptedBlobFailsLoudly(t *testing.T) {
	svc, db, _ := newTestService(t)

	id, err := svc.IngestMessage(sampleXML("4000510010065678", "123456789012"))
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE transactions SET pan = 'not a valid blob' WHERE id = ?`, id)
	require.NoError(t, err)

	_, err = svc.GetTransaction(id, false)
	assert.ErrorIs(t, err, security.ErrDecryptionFailed)
}

func TestListTransactions_MaskedPagesAndMetadata(t *testing.T) {
	svc, _, _ := newTestService(t)

	for i := 1; i <= 25; i++ {
		_, err := svc.IngestMessage(sampleXML("4000510010065678", fmt.Sprintf("rrn-%02d", i)))
		require.NoError(t, err)
	}

	page1, err := svc.ListTransactions(1, 10)
	require.NoError(t, err)
	require.Len(t, page1.Data, 10)
	assert.Equal(t, 1, page1.Pagination.Page)
	assert.Equal(t, 10, page1.Pagination.Limit)
	assert.Equal(t, int64(25), page1.Pagination.Total)
	assert.Equal(t, 3, page1.Pagination.TotalPages)
	assert.Equal(t, "rrn-25", page1.Data[0].RRN)
	for _, dto := range page1.Data {
		assert.Equal(t, "4000****5678", dto.PAN)
		assert.Empty(t, dto.PANFull)
	}

	page3, err := svc.ListTransactions(3, 10)
	require.NoError(t, err)
	assert.Len(t, page3.Data, 5)

	page4, err := svc.ListTransactions(4, 10)
	require.NoError(t, err)
	assert.Len(t, page4.Data, 0)
	assert.Equal(t, 3, page4.Pagination.TotalPages)
}

func TestListTransactions_NormalizesPageAndLimit(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.IngestMessage(sampleXML("4000510010065678", "123456789012"))
	require.NoError(t, err)

	result, err := svc.ListTransactions(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pagination.Page)
	assert.Equal(t, defaultPageLimit, result.Pagination.Limit)

	capped, err := svc.ListTransactions(1, 100000)
	require.NoError(t, err)
	assert.Equal(t, maxPageLimit, capped.Pagination.Limit)
}

func TestListTransactions_CacheInvalidatedOnMutation(t *testing.T) {
	svc, _, _ := newTestService(t)

	id, err := svc.IngestMessage(sampleXML("4000510010065678", "rrn-cache-1"))
	require.NoError(t, err)

	first, err := svc.ListTransactions(1, 10)
	require.NoError(t, err)
	require.Len(t, first.Data, 1)

	require.NoError(t, svc.DeleteTransaction(id))

	second, err := svc.ListTransactions(1, 10)
	require.NoError(t, err)
	assert.Len(t, second.Data, 0)
	assert.Equal(t, int64(0), second.Pagination.Total)
}

func TestDeleteTransaction_Idempotence(t *testing.T) {
	svc, _, _ := newTestService(t)

	id, err := svc.IngestMessage(sampleXML("4000510010065678", "123456789012"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(id))
	assert.ErrorIs(t, svc.DeleteTransaction(id), model.ErrTransactionNotFound)
}
