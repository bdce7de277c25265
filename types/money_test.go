package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(12500), 12500, "usd", "$125.00"},
		{"EUR", EUR(9000), 9000, "eur", "€90.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"CLP", CLP(45000), 45000, "clp", "CLP 45000"},
		{"NewMoney uppercase", NewMoney(500, "MXN"), 500, "mxn", "MX$5.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Multiply", func() Money { return USD(100).Multiply(3) }, USD(300)},
		{"Complex", func() Money {
			return USD(1000).Add(USD(500)).Multiply(2).Subtract(USD(1000))
		}, USD(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestAmountForSeconds(t *testing.T) {
	tests := []struct {
		name    string
		rate    Money
		seconds int64
		want    Money
	}{
		// $50.00/hr for 2.5h = $125.00 exactly
		{"two and a half hours", USD(5000), 9000, USD(12500)},
		{"one hour", USD(5000), 3600, USD(5000)},
		{"zero seconds", USD(5000), 0, USD(0)},
		// 1 second at $50.00/hr = 5000/3600 = 1.38 cents -> rounds to 1
		{"one second rounds down", USD(5000), 1, USD(1)},
		// 1 second at $72.00/hr = 7200/3600 = exactly 2 cents
		{"exact division", USD(7200), 1, USD(2)},
		// half-up boundary: 1800s at $0.01/hr = 0.5 cents -> rounds to 1
		{"half rounds up", USD(1), 1800, USD(1)},
		// just below half: 1799s at $0.01/hr = 0.49972 cents -> rounds to 0
		{"below half rounds down", USD(1), 1799, USD(0)},
		// no per-entry drift: 90 minutes at $33.33/hr
		{"odd rate", USD(3333), 5400, USD(5000)}, // 3333*5400/3600 = 4999.5 -> 5000
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AmountForSeconds(tt.rate, tt.seconds)
			if !got.Equal(tt.want) {
				t.Errorf("AmountForSeconds(%v, %d) = %v, want %v", tt.rate, tt.seconds, got, tt.want)
			}
		})
	}
}

func TestAmountForSecondsNegativePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for negative duration")
		}
	}()

	_ = AmountForSeconds(USD(5000), -1)
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	// This should panic
	_ = USD(100).Add(EUR(100))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
		{"Negative less", USD(-100), USD(100), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(12500), "125.00"},
		{USD(100), "1.00"},
		{USD(1), "0.01"},
		{USD(0), "0.00"},
		{USD(-12500), "-125.00"},
		{USD(-1), "-0.01"},
		{EUR(9999), "99.99"},
		{CLP(45000), "45000"}, // No decimals
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestValidCurrency(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"usd", true},
		{"USD", true},
		{"clp", true},
		{"us", false},
		{"usdd", false},
		{"u$d", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ValidCurrency(tt.code); got != tt.want {
				t.Errorf("ValidCurrency(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	m := USD(12500)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.Amount != 12500 || decoded.Currency != "usd" || decoded.Display != "$125.00" {
		t.Errorf("unexpected JSON payload: %+v", decoded)
	}
}

func TestSum(t *testing.T) {
	got := Sum(USD(100), USD(200), USD(300))
	if !got.Equal(USD(600)) {
		t.Errorf("Sum: got %v, want %v", got, USD(600))
	}
}
