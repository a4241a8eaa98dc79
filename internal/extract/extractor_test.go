package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

func TestFromTextNormalizesDeterministically(t *testing.T) {
	e := New(15000)

	a, err := e.FromText("Hello   world.\r\nSecond  line.\n\n\n\nThird.", "T")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	b, err := e.FromText("Hello   world.\r\nSecond  line.\n\n\n\nThird.", "T")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if a.Text != b.Text {
		t.Error("normalization is not deterministic")
	}
	if a.Fingerprint != b.Fingerprint {
		t.Error("fingerprint is not stable across re-extraction")
	}
	if strings.Contains(a.Text, "  ") {
		t.Errorf("text still contains runs of spaces: %q", a.Text)
	}
	if strings.Contains(a.Text, "\n\n\n") {
		t.Errorf("text still contains runs of newlines: %q", a.Text)
	}
	if a.WordCount != 6 {
		t.Errorf("WordCount = %d, want 6", a.WordCount)
	}
}

func TestFromTextRejectsBadInput(t *testing.T) {
	e := New(15000)

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t "},
		{"binary", "abc\x00def"},
		{"invalid utf8", "abc\xff\xfedef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.FromText(tt.text, "")
			var xerr *model.ExtractionError
			if !errors.As(err, &xerr) {
				t.Errorf("FromText(%s) error = %v, want ExtractionError", tt.name, err)
			}
		})
	}
}

func TestFromTextTruncates(t *testing.T) {
	e := New(10)
	got, err := e.FromText("one two three four five six seven", "")
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if len([]rune(got.Text)) != 10 {
		t.Errorf("len = %d, want 10", len([]rune(got.Text)))
	}
}

func TestFromURL(t *testing.T) {
	body := "<html><head><title>Test Article</title></head><body><article><p>" +
		strings.Repeat("This is a sentence with enough words to pass the minimum length check. ", 10) +
		"</p></article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	e := New(15000)
	got, err := e.FromURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.Contains(got.Text, "enough words") {
		t.Errorf("extracted text missing article body: %q", got.Text[:80])
	}
	if got.Fingerprint == "" {
		t.Error("fingerprint should not be empty")
	}
}

func TestFromURLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := New(15000)
	var xerr *model.ExtractionError

	if _, err := e.FromURL(context.Background(), srv.URL); !errors.As(err, &xerr) {
		t.Errorf("FromURL on 404 = %v, want ExtractionError", err)
	}
	if _, err := e.FromURL(context.Background(), "ftp://example.com/x"); !errors.As(err, &xerr) {
		t.Errorf("FromURL on bad scheme = %v, want ExtractionError", err)
	}
	if _, err := e.FromURL(context.Background(), "http://127.0.0.1:1"); !errors.As(err, &xerr) {
		t.Errorf("FromURL on unreachable host = %v, want ExtractionError", err)
	}
}
