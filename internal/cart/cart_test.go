package cart

import (
	"context"
	"testing"

	"github.com/timberline-shop/timberline/internal/cache"
	"github.com/timberline-shop/timberline/internal/domain"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		guest   []domain.Item
		account []domain.Item
		want    []domain.Item
	}{
		{
			name: "quantities sum for matching products",
			guest: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 4500},
			},
			account: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 2, UnitPriceCents: 4500},
			},
			want: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 3, UnitPriceCents: 4500},
			},
		},
		{
			name: "guest-only lines are appended after account lines",
			guest: []domain.Item{
				{ProductRef: "maple-tray", Quantity: 1, UnitPriceCents: 3200},
			},
			account: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 4500},
			},
			want: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 4500},
				{ProductRef: "maple-tray", Quantity: 1, UnitPriceCents: 3200},
			},
		},
		{
			name:  "empty guest cart leaves account cart untouched",
			guest: nil,
			account: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 4500},
			},
			want: []domain.Item{
				{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 4500},
			},
		},
		{
			name: "empty account cart takes the guest cart",
			guest: []domain.Item{
				{ProductRef: "maple-tray", Quantity: 2, UnitPriceCents: 3200},
			},
			account: nil,
			want: []domain.Item{
				{ProductRef: "maple-tray", Quantity: 2, UnitPriceCents: 3200},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Merge(tt.guest, tt.account)
			if len(got) != len(tt.want) {
				t.Fatalf("merged %d lines, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ProductRef != tt.want[i].ProductRef || got[i].Quantity != tt.want[i].Quantity {
					t.Fatalf("line %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	guest := []domain.Item{{ProductRef: "oak-shelf", Quantity: 1}}
	account := []domain.Item{{ProductRef: "oak-shelf", Quantity: 2}}

	Merge(guest, account)

	if guest[0].Quantity != 1 || account[0].Quantity != 2 {
		t.Fatalf("inputs mutated: guest=%+v account=%+v", guest, account)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	provider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Close() })
	return NewStore(provider)
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	items, err := store.Get(ctx, "guest-abc")
	if err != nil {
		t.Fatalf("Get on missing cart: %v", err)
	}
	if items != nil {
		t.Fatalf("missing cart = %+v, want nil", items)
	}

	saved := []domain.Item{{ProductRef: "oak-shelf", Quantity: 2, UnitPriceCents: 4500}}
	if err := store.Save(ctx, "guest-abc", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	items, err = store.Get(ctx, "guest-abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(items) != 1 || items[0].ProductRef != "oak-shelf" || items[0].Quantity != 2 {
		t.Fatalf("round trip = %+v", items)
	}

	if err := store.Clear(ctx, "guest-abc"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	items, err = store.Get(ctx, "guest-abc")
	if err != nil || items != nil {
		t.Fatalf("after clear: items=%+v err=%v", items, err)
	}
}

func TestReconcileOnLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	guestItems := []domain.Item{
		{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 4500},
		{ProductRef: "maple-tray", Quantity: 1, UnitPriceCents: 3200},
	}
	accountItems := []domain.Item{
		{ProductRef: "oak-shelf", Quantity: 2, UnitPriceCents: 4500},
	}
	if err := store.Save(ctx, "guest-abc", guestItems); err != nil {
		t.Fatalf("Save guest: %v", err)
	}
	if err := store.Save(ctx, "user-1", accountItems); err != nil {
		t.Fatalf("Save account: %v", err)
	}

	merged, err := store.ReconcileOnLogin(ctx, "guest-abc", "user-1")
	if err != nil {
		t.Fatalf("ReconcileOnLogin: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged %d lines, want 2", len(merged))
	}
	if merged[0].ProductRef != "oak-shelf" || merged[0].Quantity != 3 {
		t.Fatalf("merged[0] = %+v, want oak-shelf x3", merged[0])
	}

	// The guest cart is gone, the account cart holds the merge.
	if items, _ := store.Get(ctx, "guest-abc"); items != nil {
		t.Fatalf("guest cart still present: %+v", items)
	}
	account, err := store.Get(ctx, "user-1")
	if err != nil || len(account) != 2 {
		t.Fatalf("account cart = %+v err=%v", account, err)
	}
}
