package models

// ParsedTransaction is the canonical field set extracted from a single
// ISO 8583 XML message. It is ephemeral: produced by the field extractor
// and consumed immediately by the transaction service.
type ParsedTransaction struct {
	MTI             string `json:"mti"`              // field 0, falling back to the header element
	PAN             string `json:"pan"`              // field 2, plaintext at this stage only
	ProcessingCode  string `json:"processing_code"`  // field 3
	Amount          int64  `json:"amount"`           // field 4, minor currency units
	TransactionTime string `json:"transaction_time"` // field 12, HHMMSS
	TransactionDate string `json:"transaction_date"` // field 13, MMDD
	RRN             string `json:"rrn"`              // field 37
	ResponseCode    string `json:"response_code"`    // field 39, optional
	TerminalID      string `json:"terminal_id"`      // field 41
	Currency        string `json:"currency"`         // field 49, ISO 4217 numeric
}

// TransactionDTO is the outward-facing representation of a stored
// transaction. PAN always carries the masked form; PANFull is populated
// only for callers authorized to reveal the account number.
type TransactionDTO struct {
	ID              int64  `json:"id"`
	MTI             string `json:"mti"`
	PAN             string `json:"pan"`
	PANFull         string `json:"pan_full,omitempty"`
	ProcessingCode  string `json:"processing_code"`
	Amount          int64  `json:"amount"`
	TransactionTime string `json:"transaction_time"`
	TransactionDate string `json:"transaction_date"`
	RRN             string `json:"rrn"`
	ResponseCode    string `json:"response_code"`
	TerminalID      string `json:"terminal_id"`
	Currency        string `json:"currency"`
	CreatedAt       string `json:"created_at"`
}

// Pagination describes the window of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// TransactionListResult is the envelope returned by the list endpoint.
type TransactionListResult struct {
	Data       []TransactionDTO `json:"data"`
	Pagination Pagination       `json:"pagination"`
}
