package categorizer

import (
	"context"
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// Static is a keyword-based offline categorizer. It is the default when no
// API key is configured and the test double of choice.
type Static struct{}

// NewStatic creates the offline categorizer.
func NewStatic() *Static {
	return &Static{}
}

var staticKeywords = []struct {
	terms    []string
	category string
}{
	{[]string{"SUPERMERCADO", "MERCADO", "CARREFOUR", "ATACAD"}, "Supermercado"},
	{[]string{"RESTAURANTE", "LANCHONETE", "IFOOD", "PIZZARIA", "BURGER"}, "Restaurantes"},
	{[]string{"UBER", "99APP", "POSTO", "COMBUSTIVEL", "ESTACIONAMENTO", "METRO"}, "Transporte"},
	{[]string{"ENERGIA", "LUZ", "AGUA", "GAS", "INTERNET", "TELEFONE", "CELULAR"}, "Utilidades"},
	{[]string{"FARMACIA", "DROGARIA", "HOSPITAL", "CLINICA", "LABORATORIO"}, "Saúde"},
	{[]string{"CINEMA", "TEATRO", "SHOW", "INGRESSO"}, "Entretenimento"},
	{[]string{"ESCOLA", "CURSO", "FACULDADE", "LIVRARIA"}, "Educação"},
	{[]string{"ALUGUEL", "CONDOMINIO", "IMOBILIARIA"}, "Moradia"},
	{[]string{"SEGURO"}, "Seguros"},
	{[]string{"TESOURO", "CDB", "CORRETORA", "INVESTIMENTO"}, "Investimentos"},
	{[]string{"DARF", "IPTU", "IPVA", "IMPOSTO"}, "Impostos"},
	{[]string{"PIX", "TED", "DOC", "TRANSFERENCIA"}, "Transferências"},
}

// CategorizeBatch classifies by first keyword hit in the uppercased
// description, defaulting to Outros. Never fails.
func (s *Static) CategorizeBatch(_ context.Context, descriptions []string) ([]string, error) {
	out := make([]string, len(descriptions))
	for i, d := range descriptions {
		out[i] = staticLookup(strings.ToUpper(d))
	}
	return out, nil
}

func staticLookup(upper string) string {
	for _, kw := range staticKeywords {
		for _, term := range kw.terms {
			if strings.Contains(upper, term) {
				return kw.category
			}
		}
	}
	return domain.DefaultCategoryName
}
