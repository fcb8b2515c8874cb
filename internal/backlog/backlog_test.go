package backlog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/debtneg/internal/types"
)

const jiraSearchResponse = `{
  "startAt": 0,
  "total": 4,
  "issues": [
    {"key": "PAY-1", "fields": {
      "summary": "Checkout redesign",
      "customfield_10000": 8,
      "priority": {"name": "High"},
      "status": {"name": "Selected for Development"},
      "description": "Rebuild the checkout flow."
    }},
    {"key": "PAY-2", "fields": {
      "summary": "Refund API",
      "customfield_10000": null,
      "story_points": 5
    }},
    {"key": "PAY-3", "fields": {
      "summary": "Invoice export",
      "description": {"type": "doc", "version": 1, "content": [
        {"type": "paragraph", "content": [{"type": "text", "text": "Export invoices"}, {"type": "text", "text": "as CSV."}]}
      ]}
    }},
    {"fields": {"summary": "No key"}}
  ]
}`

func testFetcher(fs afero.Fs) *Fetcher {
	return NewFetcher(Config{
		RequestTimeout:  time.Second,
		MaxElapsed:      2 * time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		Fs:              fs,
	})
}

func TestParseTickets_Jira(t *testing.T) {
	tickets, err := ParseTickets([]byte(jiraSearchResponse))
	require.NoError(t, err)
	require.Len(t, tickets, 4)

	assert.Equal(t, types.FeatureTicket{
		Key:         "PAY-1",
		Title:       "Checkout redesign",
		Priority:    "High",
		StoryPoints: 8,
		Status:      "Selected for Development",
		Description: "Rebuild the checkout flow.",
	}, tickets[0])

	assert.Equal(t, 5, tickets[1].StoryPoints, "story_points used when customfield is empty")
	assert.Equal(t, DefaultPriority, tickets[1].Priority)
	assert.Equal(t, DefaultStatus, tickets[1].Status)

	assert.Equal(t, DefaultStoryPoints, tickets[2].StoryPoints)
	assert.Equal(t, "Export invoices as CSV.", tickets[2].Description)

	assert.Empty(t, tickets[3].Key)
}

func TestParseTickets_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"bare list", `[{"key": "A-1", "title": "One", "story_points": "3"}, "junk"]`, 1, false},
		{"features", `{"features": [{"key": "A-1", "summary": "One"}, {"key": "A-2"}]}`, 2, false},
		{"empty issues", `{"issues": []}`, 0, false},
		{"no list", `{"total": 0}`, 0, true},
		{"scalar", `42`, 0, true},
		{"invalid", `{"issues": [`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets, err := ParseTickets([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tickets, tt.want)
		})
	}

	tickets, err := ParseTickets([]byte(`[{"key": "A-1", "summary": "One", "story_points": "2.6"}]`))
	require.NoError(t, err)
	assert.Equal(t, "One", tickets[0].Title)
	assert.Equal(t, 3, tickets[0].StoryPoints)
}

func TestParseTickets_DescriptionCap(t *testing.T) {
	long := strings.Repeat("é", MaxDescription+50)
	tickets, err := ParseTickets([]byte(`[{"key": "A-1", "description": "` + long + `"}]`))
	require.NoError(t, err)
	assert.Equal(t, MaxDescription, len([]rune(tickets[0].Description)))
}

func TestFetch_Jira(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jiraSearchResponse))
	}))
	defer srv.Close()

	result, err := testFetcher(nil).Fetch(context.Background(), srv.URL+"/rest/api/3/search?jql=project=PAY", "secret-token")
	require.NoError(t, err)

	assert.Equal(t, SourceJira, result.Source)
	assert.Empty(t, result.Warning)
	require.Len(t, result.Tickets, 3, "ticket without a key is dropped")
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(jiraSearchResponse))
	}))
	defer srv.Close()

	result, err := testFetcher(nil).Fetch(context.Background(), srv.URL, "Basic dXNlcjpwYXNz")
	require.NoError(t, err)
	assert.Equal(t, SourceJira, result.Source)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_FallsBackToDemo(t *testing.T) {
	var calls atomic.Int32
	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer unauthorized.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"issues": []}`))
	}))
	defer empty.Close()

	tests := []struct {
		name    string
		source  string
		warning string
	}{
		{"no source", "", "no backlog source"},
		{"client error", unauthorized.URL, "401"},
		{"empty result", empty.URL, "no tickets"},
		{"missing file", "file:///nope/backlog.json", "reading backlog file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := testFetcher(afero.NewMemMapFs()).Fetch(context.Background(), tt.source, "")
			require.NoError(t, err)
			assert.Equal(t, SourceDemo, result.Source)
			assert.Contains(t, result.Warning, tt.warning)
			assert.Equal(t, DemoTickets(), result.Tickets)
		})
	}
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func TestFetch_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/backlog.json", []byte(`[
		{"key": "OPS-7", "title": "Rotate keys", "priority": "Critical", "story_points": 2},
		{"key": "OPS-7", "title": "Duplicate"},
		{"key": "OPS-8", "title": "Bad points", "story_points": -4}
	]`), 0o644))

	for _, source := range []string{"/work/backlog.json", "file:///work/backlog.json"} {
		t.Run(source, func(t *testing.T) {
			result, err := testFetcher(fs).Fetch(context.Background(), source, "")
			require.NoError(t, err)
			assert.Equal(t, SourceFile, result.Source)
			require.Len(t, result.Tickets, 2)
			assert.Equal(t, "Rotate keys", result.Tickets[0].Title)
			assert.Equal(t, "OPS-8", result.Tickets[1].Key)
			assert.Equal(t, 0, result.Tickets[1].StoryPoints, "negative points clamp to zero")
		})
	}
}

func TestFetch_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testFetcher(nil).Fetch(ctx, srv.URL, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDemoTickets(t *testing.T) {
	tickets := DemoTickets()
	require.Len(t, tickets, 5)

	keys := make([]string, len(tickets))
	points := 0
	for i, ticket := range tickets {
		keys[i] = ticket.Key
		points += ticket.StoryPoints
	}
	assert.Equal(t, []string{"PLAT-101", "PLAT-102", "PLAT-103", "PLAT-104", "PLAT-105"}, keys)
	assert.Equal(t, 47, points)

	tickets[0].Title = "mutated"
	assert.Equal(t, "Add real-time fraud alerts", DemoTickets()[0].Title)
}

func TestAuthorization(t *testing.T) {
	assert.Equal(t, "", authorization("  "))
	assert.Equal(t, "Bearer abc", authorization("abc"))
	assert.Equal(t, "Bearer abc", authorization("Bearer abc"))
	assert.Equal(t, "Basic xyz", authorization("Basic xyz"))
}
