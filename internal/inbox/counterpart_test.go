package inbox

import "testing"

func TestNormalizeCounterpart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5531999999999@s.whatsapp.net", "5531999999999"},
		{"5531999999999:12@s.whatsapp.net", "5531999999999"},
		{"5531999999999.0:3@s.whatsapp.net", "5531999999999"},
		{"5531999999999@c.us", "5531999999999"},
		{"+55 31 99999-9999", "5531999999999"},
		{"5531999999999", "5531999999999"},
		{"  5531999999999  ", "5531999999999"},
		{"120363025246125486@g.us", "120363025246125486@g.us"},
		{"123456789012345@lid", "123456789012345@lid"},
		{"123456789012345:7@lid", "123456789012345@lid"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCounterpart(tt.in); got != tt.want {
				t.Errorf("NormalizeCounterpart(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJIDForRoundTrip(t *testing.T) {
	for _, cp := range []string{"5531999999999", "120363025246125486@g.us", "123@lid"} {
		if got := NormalizeCounterpart(JIDFor(cp)); got != cp {
			t.Errorf("NormalizeCounterpart(JIDFor(%q)) = %q", cp, got)
		}
	}
	if got := JIDFor("5531999999999"); got != "5531999999999@s.whatsapp.net" {
		t.Errorf("JIDFor = %q", got)
	}
}
