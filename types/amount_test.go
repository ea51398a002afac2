package types_test

import (
	"encoding/json"
	"testing"

	"github.com/xraph/treasury/types"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0", "0", false},
		{"1000", "1000", false},
		{" 42 ", "42", false},
		{"340282366920938463463374607431768211456", "340282366920938463463374607431768211456", false},
		{"", "", true},
		{"-5", "", true},
		{"abc", "", true},
		{"1.5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := types.ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLenientAmount(t *testing.T) {
	if got := types.LenientAmount("garbage"); !got.IsZero() {
		t.Errorf("expected zero, got %s", got)
	}
	if got := types.LenientAmount("77"); got.String() != "77" {
		t.Errorf("expected 77, got %s", got)
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := types.NewAmount(1000)
	b := types.NewAmount(300)

	sum, overflow := a.Add(b)
	if overflow || sum.String() != "1300" {
		t.Errorf("Add = %s overflow=%v", sum, overflow)
	}

	diff, underflow := a.Sub(b)
	if underflow || diff.String() != "700" {
		t.Errorf("Sub = %s underflow=%v", diff, underflow)
	}

	if _, underflow := b.Sub(a); !underflow {
		t.Error("expected underflow for 300-1000")
	}

	max := types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if _, overflow := max.Add(types.NewAmount(1)); !overflow {
		t.Error("expected overflow at 2^256")
	}
}

func TestAmountComparison(t *testing.T) {
	small, big := types.NewAmount(1), types.NewAmount(2)
	if !small.LessThan(big) || big.LessThan(small) {
		t.Error("LessThan mismatch")
	}
	if small.Cmp(big) != -1 || big.Cmp(small) != 1 || small.Cmp(small) != 0 {
		t.Error("Cmp mismatch")
	}
	if !types.ZeroAmount.IsZero() || small.IsZero() {
		t.Error("IsZero mismatch")
	}
	if !small.Equal(types.NewAmount(1)) {
		t.Error("Equal mismatch")
	}
}

func TestAmountJSON(t *testing.T) {
	type wrapper struct {
		Amount types.Amount `json:"amount"`
	}

	data, err := json.Marshal(wrapper{Amount: types.NewAmount(4900)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"amount":"4900"}` {
		t.Errorf("marshal = %s", data)
	}

	var quoted, bare wrapper
	if err := json.Unmarshal([]byte(`{"amount":"123"}`), &quoted); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"amount":123}`), &bare); err != nil {
		t.Fatal(err)
	}
	if quoted.Amount.String() != "123" || bare.Amount.String() != "123" {
		t.Errorf("unmarshal = %s / %s", quoted.Amount, bare.Amount)
	}

	var bad wrapper
	if err := json.Unmarshal([]byte(`{"amount":"-1"}`), &bad); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestAmountScanValue(t *testing.T) {
	v, err := types.NewAmount(55).Value()
	if err != nil || v != "55" {
		t.Fatalf("Value = %v, %v", v, err)
	}

	var a types.Amount
	for _, src := range []any{"55", []byte("55"), int64(55)} {
		if err := a.Scan(src); err != nil {
			t.Fatalf("Scan(%T): %v", src, err)
		}
		if a.String() != "55" {
			t.Errorf("Scan(%T) = %s", src, a)
		}
	}
	if err := a.Scan(3.5); err == nil {
		t.Error("expected error scanning float")
	}
}

func TestSumAmounts(t *testing.T) {
	total, overflow := types.SumAmounts(types.NewAmount(1), types.NewAmount(2), types.NewAmount(3))
	if overflow || total.String() != "6" {
		t.Errorf("SumAmounts = %s overflow=%v", total, overflow)
	}
	if total, overflow := types.SumAmounts(); overflow || !total.IsZero() {
		t.Errorf("empty SumAmounts = %s", total)
	}
}
