// Package parser detects and parses Brazilian CSV statement files.
//
// Two layouts are supported: credit card statements (comma-delimited, one
// header row) and account extracts (semicolon-delimited, five metadata
// lines before the header). Per-row failures are skipped with a warning;
// one bad row never aborts the whole file.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// Result is the output of parsing one statement file.
type Result struct {
	Format   domain.SourceType
	Encoding string
	Rows     []domain.NormalizedRow
	Warnings []string
}

// creditCardPaymentPatterns are term pairs that identify a credit card bill
// payment in an account extract description. All terms in a pair must
// appear in the uppercased description.
var creditCardPaymentPatterns = [][]string{
	{"PAGAMENTO", "CARTAO"},
	{"PAGAMENTO", "FATURA"},
	{"PAG", "CARTAO"},
	{"PAG", "FATURA"},
	{"PGTO", "CARTAO"},
	{"PGTO", "FATURA"},
	{"FATURA", "CARTAO"},
	{"FATURA", "CREDITO"},
	{"CARTAO", "CREDITO"},
}

// IsCreditCardPayment reports whether an account extract description looks
// like a credit card bill payment.
func IsCreditCardPayment(description string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(description))
	for _, terms := range creditCardPaymentPatterns {
		all := true
		for _, term := range terms {
			if !strings.Contains(normalized, term) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// DetectFormat sniffs the statement layout from the first six decoded
// lines. Returns domain.ErrFormatUnrecognized when neither signature
// matches.
func DetectFormat(text string) (domain.SourceType, error) {
	lines := strings.SplitN(text, "\n", 7)
	if len(lines) > 6 {
		lines = lines[:6]
	}

	var hasSemicolon, hasComma, hasExtractHeader, hasCardHeader bool
	for _, line := range lines {
		if strings.Contains(line, ";") {
			hasSemicolon = true
			if strings.Contains(line, "Data Lançamento") || strings.Contains(line, "Descrição") {
				hasExtractHeader = true
			}
		}
		if strings.Contains(line, ",") {
			hasComma = true
			if strings.Contains(line, "Data") && strings.Contains(line, "Lançamento") {
				hasCardHeader = true
			}
		}
	}

	if hasSemicolon && hasExtractHeader {
		return domain.SourceAccountExtract, nil
	}
	if hasComma && hasCardHeader {
		return domain.SourceCreditCard, nil
	}
	return "", fmt.Errorf("%w: first lines match neither credit card nor account extract layout", domain.ErrFormatUnrecognized)
}

// ParseFile reads, decodes and parses a statement file, auto-detecting its
// layout.
func ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and parses raw statement bytes, auto-detecting the layout.
func Parse(data []byte) (*Result, error) {
	text, encName, err := decodeStatement(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode statement: %w", err)
	}

	format, err := DetectFormat(text)
	if err != nil {
		return nil, err
	}

	var rows []domain.NormalizedRow
	var warnings []string
	switch format {
	case domain.SourceCreditCard:
		rows, warnings, err = parseCreditCard(text)
	case domain.SourceAccountExtract:
		rows, warnings, err = parseAccountExtract(text)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Format:   format,
		Encoding: encName,
		Rows:     rows,
		Warnings: warnings,
	}, nil
}

// columnIndex maps header names to positions, tolerating padded headers.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

// field returns the trimmed cell for a named column, or "" when the column
// is missing or the record is short.
func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
