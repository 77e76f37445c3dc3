package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/isovault/backend/src/logger"
	"github.com/username/isovault/backend/src/model"
	"github.com/username/isovault/backend/src/parsers/iso8583"
	"github.com/username/isovault/backend/src/security"
	"github.com/username/isovault/backend/src/security/validation"
	"github.com/username/isovault/backend/src/services"
	"github.com/username/isovault/backend/src/utils"
)

type TransactionHandler struct {
	txService      services.TransactionService
	maxMessageSize int64
}

func NewTransactionHandler(txService services.TransactionService, maxMessageSize int64) *TransactionHandler {
	return &TransactionHandler{
		txService:      txService,
		maxMessageSize: maxMessageSize,
	}
}

// HandleIngestMessage accepts one XML message, either as the raw request
// body or as the "file" field of a multipart form.
func (h *TransactionHandler) HandleIngestMessage(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	data, err := h.readMessageBody(r)
	if err != nil {
		ctxLogger.Warn("Failed to read message body", "error", err)
		utils.SendJSONError(w, "Failed to read message body", http.StatusBadRequest)
		return
	}

	if err := validation.CheckUploadSize(int64(len(data)), h.maxMessageSize); err != nil {
		ctxLogger.Warn("Message rejected by size check", "size", len(data), "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ScanMessageContent(data); err != nil {
		ctxLogger.Warn("Message rejected by content scan", "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.txService.IngestMessage(data)
	if err != nil {
		var validationErr *iso8583.ValidationError
		switch {
		case errors.As(err, &validationErr):
			utils.SendJSONError(w, validationErr.Error(), http.StatusBadRequest)
		case errors.Is(err, iso8583.ErrInvalidXML):
			utils.SendJSONError(w, "Invalid XML message", http.StatusBadRequest)
		default:
			ctxLogger.Error("Failed to ingest message", "error", err)
			utils.SendJSONError(w, "Failed to store transaction", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	// The reveal gate: the query flag alone is not enough, the caller's
	// token must carry the capability.
	client, _ := GetClientFromContext(r.Context())
	revealRequested := r.URL.Query().Get("reveal") == "true"
	revealPAN := revealRequested && client.RevealPAN

	if revealRequested && !client.RevealPAN {
		logger.FromContext(r.Context()).Warn("PAN reveal requested without capability", "id", id)
	}

	dto, err := h.txService.GetTransaction(id, revealPAN)
	if err != nil {
		if errors.Is(err, model.ErrTransactionNotFound) {
			utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, security.ErrDecryptionFailed) {
			utils.SendJSONError(w, "Stored record could not be decrypted", http.StatusInternalServerError)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch transaction", "id", id, "error", err)
		utils.SendJSONError(w, "Failed to fetch transaction", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, dto)
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", 10)

	result, err := h.txService.ListTransactions(page, limit)
	if err != nil {
		if errors.Is(err, security.ErrDecryptionFailed) {
			utils.SendJSONError(w, "Stored record could not be decrypted", http.StatusInternalServerError)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to list transactions", "error", err)
		utils.SendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	if err := h.txService.DeleteTransaction(id); err != nil {
		if errors.Is(err, model.ErrTransactionNotFound) {
			utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete transaction", "id", id, "error", err)
		utils.SendJSONError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readMessageBody returns the XML bytes from a multipart "file" field when
// the request is a multipart form, otherwise from the raw body. Reads are
// capped one byte above the limit so the size check can reject oversized
// payloads.
func (h *TransactionHandler) readMessageBody(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxMessageSize); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, h.maxMessageSize+1))
	}
	return io.ReadAll(io.LimitReader(r.Body, h.maxMessageSize+1))
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}
