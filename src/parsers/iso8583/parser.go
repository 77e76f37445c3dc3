package iso8583

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/username/isovault/backend/src/models"
)

// Standard ISO 8583 field numbers for the subset carried by the XML
// projection this service ingests.
const (
	FieldMTI            = "0"
	FieldPAN            = "2"
	FieldProcessingCode = "3"
	FieldAmount         = "4"
	FieldTime           = "12"
	FieldDate           = "13"
	FieldRRN            = "37"
	FieldResponseCode   = "39"
	FieldTerminalID     = "41"
	FieldCurrency       = "49"
)

// mandatoryFields is checked in declaration order; the first missing or
// empty field aborts extraction and is named in the error.
var mandatoryFields = []string{
	FieldPAN,
	FieldProcessingCode,
	FieldAmount,
	FieldTime,
	FieldDate,
	FieldRRN,
	FieldTerminalID,
	FieldCurrency,
}

// ErrInvalidXML indicates the message body is not well-formed XML.
var ErrInvalidXML = errors.New("iso8583 parser: invalid XML")

// ValidationError reports a mandatory ISO field that is missing or empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("iso8583 parser: mandatory field %s is missing or empty", e.Field)
}

// rawMessage mirrors the XML document. The root element name and its
// attributes are intentionally not validated.
type rawMessage struct {
	Header string     `xml:"header"`
	Fields []rawField `xml:"field"`
}

type rawField struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

// Parser implements the field extraction contract for the simplified
// ISO 8583 XML message format.
type Parser struct{}

// NewParser creates a new instance of the Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads one XML message and converts it into a validated
// ParsedTransaction. It is a pure transform: no storage or network access.
func (p *Parser) Parse(data []byte) (*models.ParsedTransaction, error) {
	var msg rawMessage
	decoder := xml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
	}

	// Collect id -> value; later duplicates of the same id overwrite
	// earlier ones.
	fields := make(map[string]string, len(msg.Fields))
	for _, f := range msg.Fields {
		fields[f.ID] = f.Value
	}

	for _, id := range mandatoryFields {
		if fields[id] == "" {
			return nil, &ValidationError{Field: id}
		}
	}

	amount, err := parseAmount(fields[FieldAmount])
	if err != nil {
		// A fabricated zero amount is worse than a rejected message, so a
		// non-numeric field 4 fails validation instead of coercing to 0.
		return nil, &ValidationError{Field: FieldAmount}
	}

	return &models.ParsedTransaction{
		MTI:             resolveMTI(fields, msg.Header),
		PAN:             fields[FieldPAN],
		ProcessingCode:  fields[FieldProcessingCode],
		Amount:          amount,
		TransactionTime: fields[FieldTime],
		TransactionDate: fields[FieldDate], // MMDD stored verbatim, no year inference
		RRN:             fields[FieldRRN],
		ResponseCode:    fields[FieldResponseCode],
		TerminalID:      fields[FieldTerminalID],
		Currency:        fields[FieldCurrency],
	}, nil
}

// resolveMTI prefers field 0 and falls back to the header element text.
// An empty MTI is accepted here; the service layer logs it.
func resolveMTI(fields map[string]string, header string) string {
	if mti := fields[FieldMTI]; mti != "" {
		return mti
	}
	return strings.TrimSpace(header)
}

func parseAmount(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
