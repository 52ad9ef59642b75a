package amount

import "testing"

func TestParseQuantizesRoundDown(t *testing.T) {
	cases := []struct {
		in   string
		want Micro
	}{
		{"12.5", MustParse("12.5")},
		{"12.3456789", Micro(12_345_678)},
		{"100", Micro(100_000_000)},
		{"0.000001", Micro(1)},
		{"0.0000009", Micro(0)},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1.a"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	m := MustParse("42.1")
	if got, want := m.String(), "42.100000"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFeeSnapshotBelowThreshold(t *testing.T) {
	fee := DefaultFeeSnapshot.CalculateFee(MustParse("50"))
	if fee != MustParse("5") {
		t.Errorf("fee below threshold = %v, want 5", fee)
	}
}

func TestFeeSnapshotAboveThreshold(t *testing.T) {
	gross := MustParse("200")
	fee := DefaultFeeSnapshot.CalculateFee(gross)
	// above threshold: 2% of the full 200, not flat + marginal percent
	if fee != MustParse("4") {
		t.Errorf("fee above threshold = %v, want 4", fee)
	}
	net := DefaultFeeSnapshot.CalculateNet(gross)
	if net != MustParse("196") {
		t.Errorf("net above threshold = %v, want 196", net)
	}
}

func TestFeeSnapshotNeverNegativeNet(t *testing.T) {
	tiny := MustParse("1")
	if net := DefaultFeeSnapshot.CalculateNet(tiny); net != 0 {
		t.Errorf("net for tiny deposit = %v, want 0", net)
	}
}
