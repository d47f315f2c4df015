package token

import (
	"errors"
	"fmt"
	"testing"
)

var fields = Fields{
	IMEI:         "358502009516123",
	Serial:       "ABCDEF35150000000",
	Model:        "ANY-AN00",
	PurchaseDate: "2023-06-01",
}

func TestGenerateShape(t *testing.T) {
	tok := Generate(fields)
	if have, want := len(tok), Digits+Letters; have != want {
		t.Fatalf("length: have: %d, want: %d", have, want)
	}
	for i, c := range tok {
		if i < Digits && (c < '0' || c > '9') {
			t.Errorf("position %d: expected digit, have %q", i, c)
		}
		if i >= Digits && (c < 'A' || c > 'F') {
			t.Errorf("position %d: expected uppercase hex letter, have %q", i, c)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	if have, want := Generate(fields), Generate(fields); have != want {
		t.Errorf("have: %s, want: %s", have, want)
	}
}

func TestGenerateFieldSensitivity(t *testing.T) {
	base := Generate(fields)
	for name, f := range map[string]Fields{
		"imei":   {IMEI: "358502009516131", Serial: fields.Serial, Model: fields.Model, PurchaseDate: fields.PurchaseDate},
		"serial": {IMEI: fields.IMEI, Serial: "ABCDEF35150000001", Model: fields.Model, PurchaseDate: fields.PurchaseDate},
		"model":  {IMEI: fields.IMEI, Serial: fields.Serial, Model: "ANY-AN01", PurchaseDate: fields.PurchaseDate},
		"date":   {IMEI: fields.IMEI, Serial: fields.Serial, Model: fields.Model, PurchaseDate: "2023-06-02"},
	} {
		if Generate(f) == base {
			t.Errorf("changing %s did not change the token", name)
		}
	}
}

func TestGenerateNoCollisions(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 2000; i++ {
		f := fields
		f.IMEI = fmt.Sprintf("35850200%07d", i)
		tok := Generate(f)
		if prev, ok := seen[tok]; ok {
			t.Fatalf("collision between %s and %s", prev, f.IMEI)
		}
		seen[tok] = f.IMEI
	}
}

func TestCanonicalOrder(t *testing.T) {
	have := fields.Canonical()
	want := "IMEI:358502009516123SN:ABCDEF35150000000设备型号:ANY-AN00购买日期:2023-06-01"
	if have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
}

func TestValidate(t *testing.T) {
	if err := fields.Validate(); err != nil {
		t.Fatal(err)
	}

	f := fields
	f.Model = "  "
	if err := f.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, have: %v", err)
	}

	for _, imei := range []string{"35850200951612", "3585020095161234", "35850200951612X"} {
		f := fields
		f.IMEI = imei
		if err := f.Validate(); !errors.Is(err, ErrInvalidIMEI) {
			t.Errorf("%s: expected ErrInvalidIMEI, have: %v", imei, err)
		}
	}
}
