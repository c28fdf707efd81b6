package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/dates"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/money"
)

// extractSkipLines is the number of metadata lines before the account
// extract header (bank name, account, period, balance, blank).
const extractSkipLines = 5

// parseAccountExtract parses the account extract layout:
//
//	Extrato Conta Corrente
//	Conta ;31304761
//	Período ;01/12/2025 a 31/12/2025
//	Saldo: ;6.866,58
//
//	Data Lançamento;Descrição;Valor;Saldo
//	01/12/2025;Pix enviado ...;-703,69;1.008,71
//
// Sign rule: negative declared amount = money leaving the account,
// classified as PAYMENT when the description matches the credit card
// payment heuristic, else EXPENSE; non-negative = INCOME.
func parseAccountExtract(text string) ([]domain.NormalizedRow, []string, error) {
	lines := strings.Split(text, "\n")
	if len(lines) <= extractSkipLines {
		return nil, nil, fmt.Errorf("account extract too short: %d lines", len(lines))
	}
	body := strings.Join(lines[extractSkipLines:], "\n")

	r := csv.NewReader(strings.NewReader(body))
	r.Comma = ';'
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read account extract header: %w", err)
	}
	idx := columnIndex(header)

	var rows []domain.NormalizedRow
	var warnings []string
	for line := extractSkipLines + 2; ; line++ {
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

		dateStr := field(record, idx, "Data Lançamento")
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

		description := field(record, idx, "Descrição")
		if description == "" {
			warnings = append(warnings, fmt.Sprintf("row %d: empty description, skipping", line))
			continue
		}

		var direction domain.Direction
		switch {
		case raw < 0 && IsCreditCardPayment(description):
			direction = domain.DirectionPayment
		case raw < 0:
			direction = domain.DirectionExpense
		default:
			direction = domain.DirectionIncome
		}
		amount := raw
		if amount < 0 {
			amount = -amount
		}

		row, err := domain.NewNormalizedRow(date, description, amount, direction, domain.SourceAccountExtract)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v, skipping", line, err))
			continue
		}
		row.RawPayload = rawRecordJSON(header, record)
		rows = append(rows, *row)
	}

	return rows, warnings, nil
}
