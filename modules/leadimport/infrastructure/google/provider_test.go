package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jacksonlee411/leadimport/pkg/configuration"
)

type fakeGoogle struct {
	t          *testing.T
	server     *httptest.Server
	tokenForms []url.Values
	valueRange string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.tokenForms = append(f.tokenForms, r.PostForm)
		body := map[string]any{
			"access_token": "at-new",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "scope-a scope-b",
		}
		if r.PostForm.Get("grant_type") == "authorization_code" {
			body["refresh_token"] = "rt-new"
		}
		writeJSON(w, body)
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.requireBearer(r)
		writeJSON(w, map[string]any{"email": "ann@x.com"})
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		f.requireBearer(r)
		q := r.URL.Query()
		require.Equal(t, spreadsheetMimeQuery, q.Get("q"))
		require.Equal(t, "modifiedTime desc", q.Get("orderBy"))
		require.Equal(t, "100", q.Get("pageSize"))
		writeJSON(w, map[string]any{"files": []map[string]any{
			{"id": "s-1", "name": "Leads", "modifiedTime": "2024-05-01T10:00:00Z"},
		}})
	})
	mux.HandleFunc("/v4/spreadsheets/sheet-1", func(w http.ResponseWriter, r *http.Request) {
		f.requireBearer(r)
		writeJSON(w, map[string]any{
			"properties": map[string]any{"title": "Leads"},
			"sheets": []map[string]any{
				{"properties": map[string]any{"title": "Contacts"}},
				{"properties": map[string]any{"title": "Archive"}},
			},
		})
	})
	mux.HandleFunc("/v4/spreadsheets/sheet-1/values/", func(w http.ResponseWriter, r *http.Request) {
		f.requireBearer(r)
		f.valueRange = r.URL.Path[len("/v4/spreadsheets/sheet-1/values/"):]
		writeJSON(w, map[string]any{"values": [][]any{
			{"Email", "Score"},
			{"ann@x.com", 42},
		}})
	})
	mux.HandleFunc("/v4/spreadsheets/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 404, "message": "not found"}})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) requireBearer(r *http.Request) {
	require.Equal(f.t, "Bearer at-1", r.Header.Get("Authorization"))
}

func (f *fakeGoogle) provider() *Provider {
	return NewProvider(Options{
		Google: configuration.GoogleOptions{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/callback",
		},
		APIEndpoint: f.server.URL + "/",
		AuthEndpoint: &oauth2.Endpoint{
			AuthURL:   f.server.URL + "/auth",
			TokenURL:  f.server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		HTTPClient: f.server.Client(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := newFakeGoogle(t).provider()
	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "client", q.Get("client_id"))
	require.Contains(t, q.Get("scope"), "spreadsheets.readonly")
	require.Contains(t, q.Get("scope"), "drive.metadata.readonly")
}

func TestProvider_ExchangeAndRefresh(t *testing.T) {
	f := newFakeGoogle(t)
	p := f.provider()
	now := time.Now()

	tok, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "at-new", tok.AccessToken)
	require.Equal(t, "rt-new", tok.RefreshToken)
	require.Equal(t, []string{"scope-a", "scope-b"}, tok.Scopes)
	require.WithinDuration(t, now.Add(time.Hour), tok.Expiry, time.Minute)
	require.Equal(t, "code-1", f.tokenForms[0].Get("code"))

	tok, err = p.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	require.Equal(t, "at-new", tok.AccessToken)
	require.Equal(t, "rt-1", f.tokenForms[1].Get("refresh_token"))

	_, err = p.Refresh(context.Background(), "")
	require.Error(t, err)
}

func TestProvider_AccountEmailAndListing(t *testing.T) {
	p := newFakeGoogle(t).provider()
	ctx := context.Background()

	email, err := p.AccountEmail(ctx, "at-1")
	require.NoError(t, err)
	require.Equal(t, "ann@x.com", email)

	files, err := p.ListSpreadsheets(ctx, "at-1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "s-1", files[0].ID)
	require.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), files[0].ModifiedTime.UTC())
}

func TestProvider_MetadataAndValues(t *testing.T) {
	f := newFakeGoogle(t)
	p := f.provider()
	ctx := context.Background()

	info, err := p.Metadata(ctx, "at-1", "sheet-1")
	require.NoError(t, err)
	require.Equal(t, "Leads", info.Title)
	require.Equal(t, []string{"Contacts", "Archive"}, info.SheetNames)

	values, err := p.ReadValues(ctx, "at-1", "sheet-1", "")
	require.NoError(t, err)
	require.Equal(t, "'Contacts'", f.valueRange)
	require.Equal(t, [][]string{{"Email", "Score"}, {"ann@x.com", "42"}}, values)

	_, err = p.ReadValues(ctx, "at-1", "sheet-1", "Bob's")
	require.NoError(t, err)
	require.Equal(t, "'Bob''s'", f.valueRange)

	_, err = p.Metadata(ctx, "at-1", "missing")
	require.Error(t, err)
}
