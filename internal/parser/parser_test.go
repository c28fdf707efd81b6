package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

const creditCardCSV = `Data,Lançamento,Categoria,Tipo,Valor
03/01/2026,APPLE.COM/BILL,COMPRAS,Compra à vista,"R$ 119,90"
05/01/2026,UBER TRIP,TRANSPORTE,Compra à vista,"R$ 45,00"
07/01/2026,ESTORNO COMPRA,COMPRAS,Estorno,"-R$ 50,00"
`

const accountExtractCSV = `Extrato Conta Corrente
Conta ;31304761
Período ;01/12/2025 a 31/12/2025
Saldo: ;6.866,58

Data Lançamento;Descrição;Valor;Saldo
01/12/2025;PAGAMENTO FATURA CARTAO;-703,69;1.008,71
02/12/2025;UBER TRIP;-25,00;983,71
05/12/2025;TED RECEBIDA EMPRESA;5.000,00;5.983,71
`

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.SourceType
	}{
		{"credit card", creditCardCSV, domain.SourceCreditCard},
		{"account extract", accountExtractCSV, domain.SourceAccountExtract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.text)
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFormat_Unrecognized(t *testing.T) {
	_, err := DetectFormat("just some text\nwithout any csv structure\n")
	if err == nil {
		t.Fatal("DetectFormat() expected error for unknown layout")
	}
	if !errors.Is(err, domain.ErrFormatUnrecognized) {
		t.Errorf("DetectFormat() error = %v, want ErrFormatUnrecognized", err)
	}
}

func TestParse_CreditCard(t *testing.T) {
	result, err := Parse([]byte(creditCardCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Format != domain.SourceCreditCard {
		t.Errorf("Format = %v, want credit_card", result.Format)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(result.Rows))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	first := result.Rows[0]
	if !first.Date.Equal(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("row 0 date = %v, want 2026-01-03", first.Date)
	}
	if first.Description != "APPLE.COM/BILL" {
		t.Errorf("row 0 description = %q", first.Description)
	}
	if first.Amount != 119.90 || first.Direction != domain.DirectionExpense {
		t.Errorf("row 0 = %v %v, want 119.90 EXPENSE", first.Amount, first.Direction)
	}
	if first.OriginalCategory != "COMPRAS" {
		t.Errorf("row 0 original category = %q, want COMPRAS", first.OriginalCategory)
	}
	if !strings.Contains(first.RawPayload, "APPLE.COM/BILL") {
		t.Errorf("row 0 raw payload missing original cells: %s", first.RawPayload)
	}

	// Negative declared amount becomes an absolute-value REFUND.
	refund := result.Rows[2]
	if refund.Amount != 50.00 || refund.Direction != domain.DirectionRefund {
		t.Errorf("row 2 = %v %v, want 50.00 REFUND", refund.Amount, refund.Direction)
	}
}

func TestParse_AccountExtract(t *testing.T) {
	result, err := Parse([]byte(accountExtractCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Format != domain.SourceAccountExtract {
		t.Errorf("Format = %v, want account_extract", result.Format)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(result.Rows))
	}

	tests := []struct {
		idx       int
		amount    float64
		direction domain.Direction
	}{
		{0, 703.69, domain.DirectionPayment},
		{1, 25.00, domain.DirectionExpense},
		{2, 5000.00, domain.DirectionIncome},
	}
	for _, tt := range tests {
		row := result.Rows[tt.idx]
		if row.Amount != tt.amount || row.Direction != tt.direction {
			t.Errorf("row %d = %v %v, want %v %v", tt.idx, row.Amount, row.Direction, tt.amount, tt.direction)
		}
		if row.SourceType != domain.SourceAccountExtract {
			t.Errorf("row %d source = %v", tt.idx, row.SourceType)
		}
	}
}

func TestParse_SkipsBadRowsWithWarnings(t *testing.T) {
	csv := `Data,Lançamento,Categoria,Tipo,Valor
03/01/2026,APPLE.COM/BILL,COMPRAS,Compra à vista,"R$ 119,90"
not-a-date,BAD ROW,COMPRAS,Compra à vista,"R$ 10,00"
05/01/2026,NO AMOUNT,COMPRAS,Compra à vista,abc
06/01/2026,,COMPRAS,Compra à vista,"R$ 5,00"
`
	result, err := Parse([]byte(csv))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Errorf("got %d rows, want 1 (bad rows skipped)", len(result.Rows))
	}
	if len(result.Warnings) != 3 {
		t.Errorf("got %d warnings, want 3: %v", len(result.Warnings), result.Warnings)
	}
}

func TestParse_AccountExtractTooShort(t *testing.T) {
	if _, err := Parse([]byte("Data Lançamento;Descrição;Valor\n")); err == nil {
		t.Error("Parse() expected error for extract without metadata lines")
	}
}

func TestIsCreditCardPayment(t *testing.T) {
	tests := []struct {
		description string
		want        bool
	}{
		{"PAGAMENTO FATURA CARTAO", true},
		{"Pagamento de fatura", true},
		{"PGTO CARTAO CREDITO", true},
		{"pagamento cartao visa", true},
		{"UBER TRIP", false},
		{"PAGAMENTO BOLETO ESCOLA", false},
		{"FATURA ENERGIA", false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := IsCreditCardPayment(tt.description); got != tt.want {
				t.Errorf("IsCreditCardPayment(%q) = %v, want %v", tt.description, got, tt.want)
			}
		})
	}
}

func TestDecodeStatement(t *testing.T) {
	t.Run("utf-8", func(t *testing.T) {
		text, enc, err := decodeStatement([]byte("Data,Lançamento\n"))
		if err != nil {
			t.Fatalf("decodeStatement() error = %v", err)
		}
		if enc != "utf-8" {
			t.Errorf("encoding = %q, want utf-8", enc)
		}
		if !strings.Contains(text, "Lançamento") {
			t.Errorf("decoded text lost accents: %q", text)
		}
	})

	t.Run("utf-8 with BOM", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Data,Valor\n")...)
		text, enc, err := decodeStatement(data)
		if err != nil {
			t.Fatalf("decodeStatement() error = %v", err)
		}
		if enc != "utf-8-sig" {
			t.Errorf("encoding = %q, want utf-8-sig", enc)
		}
		if strings.HasPrefix(text, "\uFEFF") {
			t.Error("BOM not stripped")
		}
	})

	t.Run("cp1252", func(t *testing.T) {
		// "Lançamento" with ç as 0xE7, invalid as UTF-8.
		data := []byte{'L', 'a', 'n', 0xE7, 'a', 'm', 'e', 'n', 't', 'o'}
		text, enc, err := decodeStatement(data)
		if err != nil {
			t.Fatalf("decodeStatement() error = %v", err)
		}
		if enc != "cp1252" {
			t.Errorf("encoding = %q, want cp1252", enc)
		}
		if text != "Lançamento" {
			t.Errorf("decoded = %q, want Lançamento", text)
		}
	})
}
