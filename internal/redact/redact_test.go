package redact

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestStringRedaction(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		disallow []string
		require  []string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer sk-secret-123",
			disallow: []string{"sk-secret-123"},
			require:  []string{"[REDACTED]"},
		},
		{
			name:     "login body",
			input:    `{"email":"a@b.com","password":"hunter22"}`,
			disallow: []string{"hunter22", "a@b.com"},
			require:  []string{`"password":"[REDACTED]"`, "[REDACTED_EMAIL]"},
		},
		{
			name:     "upload preset",
			input:    "cloudinary upload_preset=ml_default cloud=demo",
			disallow: []string{"ml_default"},
			require:  []string{"upload_preset=[REDACTED]", "cloud=demo"},
		},
		{
			name:     "session cookie",
			input:    "Cookie: connect.sid=s%3Aabcdef",
			disallow: []string{"s%3Aabcdef"},
			require:  []string{"Cookie: [REDACTED]"},
		},
		{
			name:     "hosted image url",
			input:    "hosted image=https://res.cloudinary.com/demo/image/upload/v1/abc.jpg",
			disallow: []string{"demo/image/upload"},
			require:  []string{"https://res.cloudinary.com/abc.jpg"},
		},
		{
			name:     "api secret",
			input:    "api_secret=xyz987654 token=anotherone",
			disallow: []string{"xyz987654", "anotherone"},
			require:  []string{"[REDACTED]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := String(tc.input)
			for _, bad := range tc.disallow {
				if bad != "" && strings.Contains(out, bad) {
					t.Fatalf("output still contains %q: %s", bad, out)
				}
			}
			for _, want := range tc.require {
				if !strings.Contains(out, want) {
					t.Fatalf("output missing required substring %q: %s", want, out)
				}
			}
		})
	}
}

func TestStringLeavesPlainTextAlone(t *testing.T) {
	in := "classifier: predicted label=ewaste probability=0.91"
	if out := String(in); out != in {
		t.Fatalf("expected unchanged output, got %s", out)
	}
}

func TestStringCoarsensCoordinates(t *testing.T) {
	out := String(`pickup failed at {"latitude":12.971598,"longitude":-77.594566} lat=1.5`)
	for _, want := range []string{`"latitude":12.97`, `"longitude":-77.59`, "lat=1.5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "971598") {
		t.Fatalf("precise coordinate leaked: %s", out)
	}
}

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000":                          "http://localhost:3000",
		"http://localhost:3000/":                         "http://localhost:3000",
		"http://backend/class-info/":                     "http://backend/[REDACTED_PATH]",
		"https://api.cloudinary.com/v1_1/x/upload?sig=1": "https://api.cloudinary.com/upload",
		"not a url": "[REDACTED_URL]",
	}
	for in, want := range cases {
		if got := redactURL(in); got != want {
			t.Fatalf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogfRedactsBeforeWriting(t *testing.T) {
	var buf bytes.Buffer
	out, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetFlags(flags)
	})

	Logf("classifier: load failed for %s with cookie: %s", "ada@example.com", "sid=abc")
	got := buf.String()
	if strings.Contains(got, "ada@example.com") || strings.Contains(got, "sid=abc") {
		t.Fatalf("secrets leaked into log line: %q", got)
	}
	if !strings.Contains(got, "classifier: load failed") {
		t.Fatalf("log line lost its message: %q", got)
	}
}
