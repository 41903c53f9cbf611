package translate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/janneta/canvass/voter"
	"go.uber.org/zap"
)

var dictionary = map[string]string{
	"Ravi":   "रवी",
	"Seema":  "सीमा",
	"Anil":   "अनिल",
	"Male":   "पुरुष",
	"Female": "स्त्री",
}

func newServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sl") != "en" || q.Get("tl") != "mr" || q.Get("client") != "gtx" || q.Get("dt") != "t" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		text := q.Get("q")
		if text == "broken" {
			fmt.Fprint(w, "not json")
			return
		}
		out, ok := dictionary[text]
		if !ok {
			fmt.Fprint(w, `[null,null,"en"]`)
			return
		}
		fmt.Fprintf(w, `[[[%q,%q,null,null,10]],null,"en"]`, out, text)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *Client {
	c := New(zap.NewNop().Sugar())
	c.BaseURL = newServer(t).URL
	return c
}

func TestText(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	testCases := []struct {
		in       string
		expected string
	}{
		{"Ravi", "रवी"},
		{"", ""},
		{"Unknown word", "Unknown word"},
		{"broken", "broken"},
	}
	for _, tt := range testCases {
		if got := c.Text(ctx, tt.in); got != tt.expected {
			t.Errorf("expected %q for %q, got %q", tt.expected, tt.in, got)
		}
	}
}

func TestTextServerDown(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	srv := httptest.NewServer(http.NotFoundHandler())
	c.BaseURL = srv.URL
	srv.Close()
	if got := c.Text(context.Background(), "Ravi"); got != "Ravi" {
		t.Errorf("expected original text when the endpoint is unreachable, got %q", got)
	}
}

func TestVoter(t *testing.T) {
	c := newClient(t)
	got := c.Voter(context.Background(), voter.Voter{Name: "Ravi", Gender: "Male", Age: "40", WhatsApp: "9876543210"})
	if got.Name != "रवी" || got.Gender != "पुरुष" || got.Age != "40" || got.WhatsApp != "9876543210" {
		t.Errorf("unexpected translated voter %+v", got)
	}
}

func TestFamilyKeepsOrder(t *testing.T) {
	c := newClient(t)
	in := []voter.Member{
		{Name: "Seema", Gender: "Female", SerialNumber: "12"},
		{Name: "Anil", Gender: "Male", AddedAt: 5},
		{Name: "Ravi"},
	}
	got, err := c.Family(context.Background(), in)
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	expected := []voter.Member{
		{Name: "सीमा", Gender: "स्त्री", SerialNumber: "12"},
		{Name: "अनिल", Gender: "पुरुष", AddedAt: 5},
		{Name: "रवी"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("unexpected family (-want +got):\n%s", diff)
	}
}

func TestFamilyCancelled(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Family(ctx, []voter.Member{{Name: "Ravi"}}); err == nil {
		t.Errorf("expected an error for a cancelled context")
	}
}
