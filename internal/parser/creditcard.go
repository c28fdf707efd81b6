package parser

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/dates"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/money"
)

// parseCreditCard parses the credit card statement layout:
//
//	"Data","Lançamento","Categoria","Tipo","Valor"
//	"03/01/2026","APPLE.COM/BILL","COMPRAS","Compra à vista","R$ 119,90"
//
// Sign rule: positive declared amount = EXPENSE (adding to the card debt),
// negative = REFUND. Amounts are stored as absolute values.
func parseCreditCard(text string) ([]domain.NormalizedRow, []string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = ','
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read credit card header: %w", err)
	}
	idx := columnIndex(header)

	var rows []domain.NormalizedRow
	var warnings []string
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: malformed CSV record, skipping: %v", line, err))
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		dateStr := field(record, idx, "Data")
		date, ok := dates.ParseDate(dateStr)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("row %d: could not parse date %q, skipping", line, dateStr))
			continue
		}

		amountStr := field(record, idx, "Valor")
		raw, ok := money.ParseAmount(amountStr)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("row %d: could not parse amount %q, skipping", line, amountStr))
			continue
		}

		description := field(record, idx, "Lançamento")
		if description == "" {
			warnings = append(warnings, fmt.Sprintf("row %d: empty description, skipping", line))
			continue
		}

		direction := domain.DirectionExpense
		if raw <= 0 {
			direction = domain.DirectionRefund
		}
		amount := raw
		if amount < 0 {
			amount = -amount
		}

		row, err := domain.NewNormalizedRow(date, description, amount, direction, domain.SourceCreditCard)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v, skipping", line, err))
			continue
		}
		row.OriginalCategory = field(record, idx, "Categoria")
		row.RawPayload = rawRecordJSON(header, record)
		rows = append(rows, *row)
	}

	return rows, warnings, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// rawRecordJSON preserves the original CSV cells keyed by header name for
// the audit payload.
func rawRecordJSON(header, record []string) string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(record) {
			m[strings.TrimSpace(name)] = record[i]
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
