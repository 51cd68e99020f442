package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseMoneySigned(t *testing.T) {
	m, err := ParseMoney("-350")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cents != -35000 {
		t.Fatalf("expected -35000, got %d", m.Cents)
	}
	if _, err := ParseMoney("99999999999999"); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := FromCents(1000)
	b := FromCents(-350)
	if got := a.Add(b).Cents; got != 650 {
		t.Fatalf("add: got %d", got)
	}
	if got := a.Sub(b).Cents; got != 1350 {
		t.Fatalf("sub: got %d", got)
	}
	if got := b.Abs().Cents; got != 350 {
		t.Fatalf("abs: got %d", got)
	}
	if got := b.Neg().Cents; got != 350 {
		t.Fatalf("neg: got %d", got)
	}
	if FromCents(-1).String() != "-0.01" {
		t.Fatalf("string: got %s", FromCents(-1).String())
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{FromCents(123456)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"amount":1234.56}` {
		t.Fatalf("unexpected json %s", data)
	}

	for _, in := range []string{`12.5`, `"12.50"`, `"12,50"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if m.Cents != 1250 {
			t.Fatalf("%s: got %d", in, m.Cents)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"ten"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}
