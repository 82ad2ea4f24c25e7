package validation

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		want   string
		wantOK bool
	}{
		{name: "valid", phone: "254700000000", want: "254700000000", wantOK: true},
		{name: "surrounding spaces", phone: "  254700000000\t", want: "254700000000", wantOK: true},
		{name: "empty", phone: "", want: "", wantOK: false},
		{name: "spaces only", phone: "   ", want: "", wantOK: false},
		{name: "format left to gateway", phone: "not-a-number", want: "not-a-number", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.phone)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("NormalizePhone(%q) = (%q, %v), want (%q, %v)", tt.phone, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
