package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":         "0,00 MAD",
		"950":       "950,00 MAD",
		"1234567.5": "1 234 567,50 MAD",
		"-2500.129": "-2 500,13 MAD",
		"100000":    "100 000,00 MAD",
	}
	for in, want := range cases {
		if got := formatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("formatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	d := DevisData{
		Amount: decimal.NewFromInt(1000),
		Payments: []PaymentLine{
			{Amount: decimal.NewFromInt(600)},
			{Amount: decimal.NewFromInt(700)},
		},
	}
	if !d.Paid().Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("paid = %s", d.Paid())
	}
	if !d.Remaining().IsZero() {
		t.Fatalf("remaining = %s, want 0", d.Remaining())
	}
}

func TestGenerateDevisPDF(t *testing.T) {
	doc, err := GenerateDevisPDF(DevisData{
		Reference:    "D-1A2B3C4D",
		Title:        "Conception villa",
		Status:       "accepte",
		Amount:       decimal.NewFromInt(150000),
		CreatedAt:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		ClientName:   "Karim Benali",
		ClientPhone:  "+212612345678",
		ProjectTitle: "Villa Anfa",
		Payments: []PaymentLine{
			{PaidAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Method: "virement", Type: "accompte", Amount: decimal.NewFromInt(50000)},
		},
		Notes: "Hors honoraires de suivi de chantier.",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
}
