package fee

import (
	"errors"
	"testing"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		price int64
		want  int64
	}{
		{0, 0},
		{1000, 100},
		{999, 100}, // 99.9 rounds up
		{994, 99},  // 99.4 rounds down
		{995, 100}, // exact half rounds up
		{4, 0},     // 0.4 rounds down
		{5, 1},     // 0.5 rounds up
		{2500000, 250000},
	}
	for _, tc := range cases {
		got, err := Compute(tc.price)
		if err != nil {
			t.Fatalf("Compute(%d): %v", tc.price, err)
		}
		if got != tc.want {
			t.Fatalf("Compute(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestComputeNegative(t *testing.T) {
	if _, err := Compute(-1); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := Total(-100); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice from Total, got %v", err)
	}
}

func TestTotal(t *testing.T) {
	total, err := Total(1000)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 1100 {
		t.Fatalf("Total(1000) = %d, want 1100", total)
	}
}
