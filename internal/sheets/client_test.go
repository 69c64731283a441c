package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"curvegraph/pkg/domain"
)

func TestClientAttachesBearerTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"range":"Models!A1:C2","majorDimension":"ROWS","values":[["name"],["Base"]]}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL+"/v4/spreadsheets/abc/", "secret", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	var vr ValueRange
	if err := c.Do(context.Background(), http.MethodGet, readPath("Models"), nil, &vr); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/v4/spreadsheets/abc/values/Models" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if len(vr.Values) != 2 || vr.Values[1][0] != "Base" {
		t.Fatalf("unexpected values %+v", vr.Values)
	}
}

func TestClientSendsJSONBody(t *testing.T) {
	var body ValueRange
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL, "", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	in := ValueRange{Range: "Inputs!K2", MajorDimension: "ROWS", Values: [][]any{{3}}}
	if err := c.Do(context.Background(), http.MethodPut, writePath("Inputs!K2"), in, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if body.Range != "Inputs!K2" || len(body.Values) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if !strings.Contains(query, "valueInputOption=RAW") {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestClientNon2xxIsRemoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"Unable to parse range"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), srv.URL, "t", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = c.Do(context.Background(), http.MethodGet, readPath("Nope"), nil, &ValueRange{})
	var apiErr *domain.RemoteAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected RemoteAPIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || !strings.Contains(apiErr.Body, "Unable to parse range") {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if !errors.Is(err, domain.ErrRemoteAPI) {
		t.Fatalf("expected errors.Is ErrRemoteAPI")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(context.Background(), " ", "t"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoaderOverHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"values":[["name","notes","inputs"],["Base","",1,2]]}`)
	}))
	defer srv.Close()
	c, err := NewClient(context.Background(), srv.URL, "t", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	recs, err := NewLoader(c).Load(context.Background(), domain.TableModels)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := recs[1].Fields["inputs"].Len(); got != 2 {
		t.Fatalf("expected 2 inputs, got %d", got)
	}
}
