package category

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/fuzzy"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewService(s, fuzzy.DefaultThreshold), s
}

func TestFindOrCreate_CreatesVerbatim(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Supermercado")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	if c.Name != "Supermercado" || c.ID == 0 {
		t.Errorf("FindOrCreate() = %+v", c)
	}
}

func TestFindOrCreate_FuzzyReuses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.FindOrCreate(ctx, "Supermercado")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}

	// Case differences and small typos resolve to the existing category.
	tests := []string{"supermercado", "SUPERMERCADO", "Supermercados"}
	for _, name := range tests {
		got, err := svc.FindOrCreate(ctx, name)
		if err != nil {
			t.Fatalf("FindOrCreate(%q) error = %v", name, err)
		}
		if got.ID != created.ID {
			t.Errorf("FindOrCreate(%q) created new category %d, want %d", name, got.ID, created.ID)
		}
	}
}

func TestFindOrCreate_ThresholdConfigurable(t *testing.T) {
	_, s := newTestService(t)
	ctx := context.Background()

	strict := NewService(s, 95)
	created, err := strict.FindOrCreate(ctx, "Supermercado")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}

	// The plural scores ~92: enough for the default cutoff, not for 95.
	got, err := strict.FindOrCreate(ctx, "Supermercados")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	if got.ID == created.ID {
		t.Errorf("strict threshold reused category %d, want a new one", got.ID)
	}
}

func TestFindOrCreate_EmptyDefaultsToOutros(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "   ")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	if c.Name != domain.DefaultCategoryName {
		t.Errorf("FindOrCreate(blank) = %q, want %q", c.Name, domain.DefaultCategoryName)
	}
}

func TestRename_ProtectedFails(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Rename(context.Background(), domain.SubscriptionsCategoryID, "Streaming")
	if !errors.Is(err, domain.ErrCategoryProtected) {
		t.Errorf("Rename(protected) error = %v, want ErrCategoryProtected", err)
	}
}

func TestDelete_ProtectedFails(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Delete(context.Background(), domain.SubscriptionsCategoryID)
	if !errors.Is(err, domain.ErrCategoryProtected) {
		t.Errorf("Delete(protected) error = %v, want ErrCategoryProtected", err)
	}
}

func TestDelete_InUseFails(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Transporte")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	tx := &domain.Transaction{
		Date: dateOf(2026, 1, 5), Description: "UBER TRIP", Amount: 25,
		Currency: domain.DefaultCurrency, Direction: domain.DirectionExpense,
		CategoryID: c.ID, SourceType: domain.SourceCreditCard,
	}
	if err := s.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}

	if err := svc.Delete(ctx, c.ID); !errors.Is(err, domain.ErrCategoryInUse) {
		t.Errorf("Delete(in use) error = %v, want ErrCategoryInUse", err)
	}
}

func TestDelete_Unused(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Temporaria")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Errorf("Delete(unused) error = %v", err)
	}
}

func TestValidateAssignment(t *testing.T) {
	subID := int64(3)
	tests := []struct {
		name           string
		categoryID     int64
		subscriptionID *int64
		wantErr        bool
	}{
		{"linked with protected category", domain.SubscriptionsCategoryID, &subID, false},
		{"unlinked with normal category", 5, nil, false},
		{"linked without protected category", 5, &subID, true},
		{"unlinked with protected category", domain.SubscriptionsCategoryID, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssignment(tt.categoryID, tt.subscriptionID)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidCategoryAssignment) {
					t.Errorf("ValidateAssignment() error = %v, want ErrInvalidCategoryAssignment", err)
				}
			} else if err != nil {
				t.Errorf("ValidateAssignment() error = %v, want nil", err)
			}
		})
	}
}

func dateOf(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}
