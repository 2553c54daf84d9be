package utils

import "testing"

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"nifty", "NIFTY"},
		{"NIFTY 50", "NIFTY"},
		{"  banknifty ", "BANKNIFTY"},
		{"Nifty Bank", "BANKNIFTY"},
		{"$RELIANCE", "RELIANCE"},
		{"RIL", "RELIANCE"},
		{"SBI", "SBIN"},
		{"infosys", "INFY"},
		{"UNKNOWN", "UNKNOWN"},
	}

	for _, tt := range tests {
		got := NormalizeTicker(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLookupInstrument(t *testing.T) {
	inst, ok := LookupInstrument("nifty 50")
	if !ok {
		t.Fatal("LookupInstrument(nifty 50) not found")
	}
	if inst.InstrumentKey != "NSE_INDEX|Nifty 50" {
		t.Errorf("InstrumentKey = %q, want NSE_INDEX|Nifty 50", inst.InstrumentKey)
	}
	if inst.LotSize != 75 || inst.StrikeStep != 50 || !inst.IsIndex {
		t.Errorf("NIFTY = %+v, want lot 75 step 50 index", inst)
	}

	inst, ok = LookupInstrument("RELIANCE")
	if !ok || inst.InstrumentKey != "NSE_EQ|INE002A01018" {
		t.Errorf("RELIANCE = %+v, %v", inst, ok)
	}

	if _, ok := LookupInstrument("DOESNOTEXIST"); ok {
		t.Error("LookupInstrument(DOESNOTEXIST) should not be found")
	}
}

func TestSymbolForKey(t *testing.T) {
	sym, ok := SymbolForKey("NSE_INDEX|Nifty Bank")
	if !ok || sym != "BANKNIFTY" {
		t.Errorf("SymbolForKey(Nifty Bank) = %q, %v; want BANKNIFTY", sym, ok)
	}
	if _, ok := SymbolForKey("NSE_EQ|UNKNOWN"); ok {
		t.Error("SymbolForKey(unknown) should not be found")
	}
}

func TestKnownSymbolsSorted(t *testing.T) {
	syms := KnownSymbols()
	if len(syms) != len(instruments) {
		t.Fatalf("len(KnownSymbols) = %d, want %d", len(syms), len(instruments))
	}
	for i := 1; i < len(syms); i++ {
		if syms[i-1] > syms[i] {
			t.Errorf("KnownSymbols not sorted at %d: %q > %q", i, syms[i-1], syms[i])
		}
	}
}

func TestToYFinanceTicker(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"RELIANCE", "RELIANCE.NS"},
		{"TCS", "TCS.NS"},
		{"NIFTY", "^NSEI"},
		{"NIFTY 50", "^NSEI"},
		{"BANKNIFTY", "^NSEBANK"},
		{"SENSEX", "^BSESN"},
		{"RELIANCE.NS", "RELIANCE.NS"},
		{"RELIANCE.BO", "RELIANCE.BO"},
	}

	for _, tt := range tests {
		got := ToYFinanceTicker(tt.input)
		if got != tt.want {
			t.Errorf("ToYFinanceTicker(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToKiteInstrument(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"NIFTY", "NSE:NIFTY 50"},
		{"banknifty", "NSE:NIFTY BANK"},
		{"SENSEX", "BSE:SENSEX"},
		{"INFY", "NSE:INFY"},
	}
	for _, tt := range tests {
		if got := ToKiteInstrument(tt.input); got != tt.want {
			t.Errorf("ToKiteInstrument(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsIndex(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"NIFTY", true},
		{"BANKNIFTY", true},
		{"FINNIFTY", true},
		{"SENSEX", true},
		{"RELIANCE", false},
		{"TCS", false},
		{"UNKNOWN", false},
	}

	for _, tt := range tests {
		got := IsIndex(tt.input)
		if got != tt.want {
			t.Errorf("IsIndex(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRoundToStrike(t *testing.T) {
	tests := []struct {
		price, step, want float64
	}{
		{24512, 50, 24500},
		{24525, 50, 24550},
		{24574.9, 50, 24550},
		{51249, 100, 51200},
		{51250, 100, 51300},
		{1234.5, 0, 1234.5},
	}
	for _, tt := range tests {
		if got := RoundToStrike(tt.price, tt.step); got != tt.want {
			t.Errorf("RoundToStrike(%v, %v) = %v, want %v", tt.price, tt.step, got, tt.want)
		}
	}
}
