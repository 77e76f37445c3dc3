package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/isovault/backend/src/logger"
	"github.com/username/isovault/backend/src/model"
	"github.com/username/isovault/backend/src/models"
	"github.com/username/isovault/backend/src/parsers/iso8583"
	"github.com/username/isovault/backend/src/security"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type transactionServiceImpl struct {
	db        *sql.DB
	parser    *iso8583.Parser
	panCipher *security.PANCipher
	listCache *cache.Cache
}

// NewTransactionService wires the extractor, cipher and store together.
// listCache holds list pages and totals and is flushed on every mutation.
func NewTransactionService(db *sql.DB, parser *iso8583.Parser, panCipher *security.PANCipher, listCache *cache.Cache) TransactionService {
	return &transactionServiceImpl{
		db:        db,
		parser:    parser,
		panCipher: panCipher,
		listCache: listCache,
	}
}

func (s *transactionServiceImpl) IngestMessage(data []byte) (int64, error) {
	parsed, err := s.parser.Parse(data)
	if err != nil {
		return 0, err
	}

	if parsed.MTI == "" {
		// Accepted per the message contract, but worth surfacing: a record
		// without a message type is almost certainly a producer bug.
		logger.L.Warn("Ingesting message with empty MTI", "rrn", parsed.RRN, "terminalID", parsed.TerminalID)
	}

	encryptedPAN, err := s.panCipher.Encrypt(parsed.PAN)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt PAN: %w", err)
	}

	tx := model.Transaction{
		MTI:             parsed.MTI,
		EncryptedPAN:    encryptedPAN,
		ProcessingCode:  parsed.ProcessingCode,
		Amount:          parsed.Amount,
		TransactionTime: parsed.TransactionTime,
		TransactionDate: parsed.TransactionDate,
		RRN:             parsed.RRN,
		ResponseCode:    parsed.ResponseCode,
		TerminalID:      parsed.TerminalID,
		Currency:        parsed.Currency,
	}
	if err := tx.Create(s.db); err != nil {
		return 0, fmt.Errorf("failed to store transaction: %w", err)
	}

	s.invalidateListCache()
	logger.L.Info("Transaction ingested", "id", tx.ID, "mti", tx.MTI, "rrn", tx.RRN)
	return tx.ID, nil
}

func (s *transactionServiceImpl) GetTransaction(id int64, revealPAN bool) (*models.TransactionDTO, error) {
	tx, err := model.GetTransactionByID(s.db, id)
	if err != nil {
		return nil, err
	}

	plainPAN, err := s.panCipher.Decrypt(tx.EncryptedPAN)
	if err != nil {
		// A blob that cannot be reversed is a stored-data integrity defect;
		// never fall back to showing the raw column.
		logger.L.Error("Failed to decrypt stored PAN", "id", tx.ID, "error", err)
		return nil, err
	}

	dto := s.toDTO(tx, plainPAN)
	if revealPAN {
		dto.PANFull = plainPAN
	}
	return &dto, nil
}

func (s *transactionServiceImpl) ListTransactions(page, limit int) (*models.TransactionListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	cacheKey := fmt.Sprintf("list:%d:%d", page, limit)
	if cached, found := s.listCache.Get(cacheKey); found {
		if result, ok := cached.(*models.TransactionListResult); ok {
			return result, nil
		}
	}

	total, err := model.CountTransactions(s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	offset := (page - 1) * limit
	transactions, err := model.ListTransactions(s.db, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	data := make([]models.TransactionDTO, 0, len(transactions))
	for i := range transactions {
		plainPAN, err := s.panCipher.Decrypt(transactions[i].EncryptedPAN)
		if err != nil {
			logger.L.Error("Failed to decrypt stored PAN", "id", transactions[i].ID, "error", err)
			return nil, err
		}
		data = append(data, s.toDTO(&transactions[i], plainPAN))
	}

	result := &models.TransactionListResult{
		Data: data,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}
	s.listCache.Set(cacheKey, result, cache.DefaultExpiration)
	return result, nil
}

func (s *transactionServiceImpl) DeleteTransaction(id int64) error {
	if err := model.DeleteTransaction(s.db, id); err != nil {
		return err
	}
	s.invalidateListCache()
	logger.L.Info("Transaction deleted", "id", id)
	return nil
}

// toDTO builds the outward representation with the masked PAN only; callers
// add the full PAN when the reveal gate allows it.
func (s *transactionServiceImpl) toDTO(tx *model.Transaction, plainPAN string) models.TransactionDTO {
	return models.TransactionDTO{
		ID:              tx.ID,
		MTI:             tx.MTI,
		PAN:             security.MaskPAN(plainPAN),
		ProcessingCode:  tx.ProcessingCode,
		Amount:          tx.Amount,
		TransactionTime: tx.TransactionTime,
		TransactionDate: tx.TransactionDate,
		RRN:             tx.RRN,
		ResponseCode:    tx.ResponseCode,
		TerminalID:      tx.TerminalID,
		Currency:        tx.Currency,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
}

func (s *transactionServiceImpl) invalidateListCache() {
	s.listCache.Flush()
}
