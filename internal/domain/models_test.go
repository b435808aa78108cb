package domain

import "testing"

func TestDeriveStockStatus(t *testing.T) {
	cases := []struct {
		name         string
		stock        int64
		reorderLevel int64
		want         string
	}{
		{"well stocked", 62, 15, StatusInStock},
		{"one above reorder", 11, 10, StatusInStock},
		{"exactly at reorder", 10, 10, StatusLowStock},
		{"below reorder", 3, 10, StatusLowStock},
		{"zero stock", 0, 10, StatusOutOfStock},
		{"zero stock ignores reorder", 0, 0, StatusOutOfStock},
		{"negative clamps to out", -1, 5, StatusOutOfStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStockStatus(tc.stock, tc.reorderLevel); got != tc.want {
				t.Fatalf("DeriveStockStatus(%d, %d) = %s, want %s", tc.stock, tc.reorderLevel, got, tc.want)
			}
		})
	}
}
