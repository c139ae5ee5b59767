package patient

import "testing"

func TestNormalizeDocument(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"30.123.456", "30123456", true},
		{"1234567", "1234567", true},
		{" 30-123-456 ", "30123456", true},
		{"123456", "123456", false},
		{"123456789", "123456789", false},
		{"30A23456", "30A23456", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDocument(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeDocument(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"(011) 4567-8901", "01145678901", true},
		{"4567890", "4567890", true},
		{"456-78", "45678", false},
		{"+54 11 4567 8901", "+541145678901", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizePhone(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPatient_FullName(t *testing.T) {
	p := &Patient{FirstName: "Ana", LastName: "Gómez"}
	if p.FullName() != "Ana Gómez" {
		t.Errorf("unexpected full name %q", p.FullName())
	}
	p.FirstName = ""
	if p.FullName() != "Gómez" {
		t.Errorf("expected trimmed name, got %q", p.FullName())
	}
}
