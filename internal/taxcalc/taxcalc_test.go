package taxcalc

import "testing"

func TestIncomeTaxDefaultSlabs(t *testing.T) {
	cases := []struct {
		name   string
		income int64
		want   int64
	}{
		{"zero income", 0, 0},
		{"negative income", -5_000, 0},
		{"below exemption", 50_000_000, 0},
		{"exemption boundary", 60_000_000, 0},
		{"one cent over exemption", 60_000_001, 0},
		{"second bracket", 100_000_000, 2_000_000},
		{"second bracket upper boundary", 120_000_000, 3_000_000},
		{"third bracket", 180_000_000, 9_000_000},
		{"fourth bracket", 300_000_000, 24_000_000},
		{"fifth bracket", 480_000_000, 57_000_000},
		{"sixth bracket", 900_000_000, 156_000_000},
		{"top bracket", 2_000_000_000, 471_000_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IncomeTax(tc.income, nil)
			if got != tc.want {
				t.Fatalf("IncomeTax(%d) = %d, want %d", tc.income, got, tc.want)
			}
		})
	}
}

func TestIncomeTaxCustomSlabs(t *testing.T) {
	slabs := []Slab{
		{MinIncomeCents: 0, MaxIncomeCents: 10_000, BaseCents: 0, RatePercent: 0},
		{MinIncomeCents: 10_000, MaxIncomeCents: 0, BaseCents: 0, RatePercent: 10},
	}
	if got := IncomeTax(25_000, slabs); got != 1_500 {
		t.Fatalf("IncomeTax with custom slabs = %d, want 1500", got)
	}
}

func TestZakat(t *testing.T) {
	if got := Zakat(10_000_000); got != 250_000 {
		t.Fatalf("Zakat(10000000) = %d, want 250000", got)
	}
	if got := Zakat(0); got != 0 {
		t.Fatalf("Zakat(0) = %d, want 0", got)
	}
	if got := Zakat(-100); got != 0 {
		t.Fatalf("Zakat(-100) = %d, want 0", got)
	}
	// 2.5% of 101 cents is 2.525, rounds to 3.
	if got := Zakat(101); got != 3 {
		t.Fatalf("Zakat(101) = %d, want 3", got)
	}
}

func TestValidateSlabs(t *testing.T) {
	if err := ValidateSlabs(DefaultSlabs()); err != nil {
		t.Fatalf("default slabs should validate: %v", err)
	}
	bad := [][]Slab{
		nil,
		{{MinIncomeCents: 100, MaxIncomeCents: 0}},
		{{MinIncomeCents: 0, MaxIncomeCents: 100}, {MinIncomeCents: 200, MaxIncomeCents: 0}},
		{{MinIncomeCents: 0, MaxIncomeCents: 100}, {MinIncomeCents: 100, MaxIncomeCents: 50}},
		{{MinIncomeCents: 0, MaxIncomeCents: 0, RatePercent: 120}},
	}
	for i, slabs := range bad {
		if err := ValidateSlabs(slabs); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
