package categorizer

import (
	"context"
	"testing"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

func TestSanitize(t *testing.T) {
	descriptions := []string{"a", "b", "c"}

	tests := []struct {
		name       string
		categories []string
		want       []string
	}{
		{
			name:       "valid catalog names pass through",
			categories: []string{"Supermercado", "Transporte", "Outros"},
			want:       []string{"Supermercado", "Transporte", "Outros"},
		},
		{
			name:       "short response padded with default",
			categories: []string{"Supermercado"},
			want:       []string{"Supermercado", "Outros", "Outros"},
		},
		{
			name:       "long response truncated",
			categories: []string{"Supermercado", "Transporte", "Outros", "Moradia", "Saúde"},
			want:       []string{"Supermercado", "Transporte", "Outros"},
		},
		{
			name:       "off-catalog names replaced",
			categories: []string{"Groceries", "Supermercado", "whatever"},
			want:       []string{"Outros", "Supermercado", "Outros"},
		},
		{
			name:       "protected category never allowed",
			categories: []string{domain.SubscriptionsCategoryName, "Transporte", domain.SubscriptionsCategoryName},
			want:       []string{"Outros", "Transporte", "Outros"},
		},
		{
			name:       "nil response all default",
			categories: nil,
			want:       []string{"Outros", "Outros", "Outros"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(descriptions, tt.categories)
			if len(got) != len(tt.want) {
				t.Fatalf("Sanitize() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Sanitize()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFallback(t *testing.T) {
	got := Fallback([]string{"x", "y"})
	if len(got) != 2 || got[0] != domain.DefaultCategoryName || got[1] != domain.DefaultCategoryName {
		t.Errorf("Fallback() = %v", got)
	}
}

func TestStaticCategorizeBatch(t *testing.T) {
	s := NewStatic()
	descriptions := []string{
		"UBER TRIP SAO PAULO",
		"SUPERMERCADO PAGUE MENOS",
		"Pix enviado Fulano",
		"FARMACIA SAO JOAO",
		"SOMETHING UNRECOGNIZABLE",
	}

	got, err := s.CategorizeBatch(context.Background(), descriptions)
	if err != nil {
		t.Fatalf("CategorizeBatch() error = %v", err)
	}
	want := []string{"Transporte", "Supermercado", "Transferências", "Saúde", "Outros"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CategorizeBatch()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Static output is already catalog-safe; Sanitize must be a no-op.
	sanitized := Sanitize(descriptions, got)
	for i := range got {
		if sanitized[i] != got[i] {
			t.Errorf("Sanitize changed static output at %d: %q -> %q", i, got[i], sanitized[i])
		}
	}
}
