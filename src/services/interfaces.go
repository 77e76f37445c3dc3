package services

import (
	"time"

	"github.com/username/isovault/backend/src/models"
)

const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

// TransactionService is the orchestration layer over the field extractor,
// the PAN cipher, the masking policy, and the record store.
//
// Errors from collaborators are never suppressed: parser errors
// (iso8583.ErrInvalidXML, *iso8583.ValidationError), store errors
// (model.ErrTransactionNotFound) and cipher errors
// (security.ErrDecryptionFailed) pass through for the handler layer to
// translate.
type TransactionService interface {
	// IngestMessage extracts the message fields, encrypts the PAN and
	// persists the record, returning the generated id. Any failure at any
	// stage aborts without partial persistence.
	IngestMessage(data []byte) (int64, error)

	// GetTransaction returns the record with the masked PAN, plus the fully
	// decrypted PAN when revealPAN is granted to the caller.
	GetTransaction(id int64, revealPAN bool) (*models.TransactionDTO, error)

	// ListTransactions returns one page of records, masked PANs only,
	// newest first, with pagination metadata. A page beyond the last one
	// yields an empty data set, not an error.
	ListTransactions(page, limit int) (*models.TransactionListResult, error)

	// DeleteTransaction removes a record by id.
	DeleteTransaction(id int64) error
}
