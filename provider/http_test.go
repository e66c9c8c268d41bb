package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPlaceCall(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"callId":"c-out-1"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "acct-1", "user", "secret", time.Second)

	legID, err := c.PlaceCall(context.Background(), PlaceCallParams{
		From:          "+15551230001",
		To:            "+15559990000",
		ApplicationID: "app-1",
		AnswerURL:     "http://cb/answer",
		Tag:           "a-1",
		Timeout:       15 * time.Second,
	})
	if err != nil {
		t.Fatalf("PlaceCall error: %v", err)
	}
	if legID != "c-out-1" {
		t.Errorf("legID = %q, want c-out-1", legID)
	}
	if gotPath != "/accounts/acct-1/calls" {
		t.Errorf("Path = %q", gotPath)
	}
	if gotUser != "user" || gotPass != "secret" {
		t.Errorf("Basic auth = %q/%q", gotUser, gotPass)
	}
	if gotBody["to"] != "+15559990000" {
		t.Errorf("Body to = %v", gotBody["to"])
	}
	if gotBody["callTimeout"] != float64(15) {
		t.Errorf("Body callTimeout = %v, want 15", gotBody["callTimeout"])
	}
}

func TestModifyCall(t *testing.T) {
	var gotPath string
	var gotBody ModifyCallParams

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "acct-1", "user", "secret", time.Second)

	err := c.ModifyCall(context.Background(), "c-1", ModifyCallParams{
		RedirectURL: "http://cb/voicemail",
		State:       "active",
	})
	if err != nil {
		t.Fatalf("ModifyCall error: %v", err)
	}
	if gotPath != "/accounts/acct-1/calls/c-1" {
		t.Errorf("Path = %q", gotPath)
	}
	if gotBody.RedirectURL != "http://cb/voicemail" {
		t.Errorf("RedirectURL = %q", gotBody.RedirectURL)
	}
}

func TestFetchRecording(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct-1/calls/c-1/recordings/r-1/media" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "RIFFdata")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "acct-1", "user", "secret", time.Second)

	media, err := c.FetchRecording(context.Background(), "c-1", "r-1")
	if err != nil {
		t.Fatalf("FetchRecording error: %v", err)
	}
	defer media.Close()
	data, _ := io.ReadAll(media)
	if string(data) != "RIFFdata" {
		t.Errorf("Media = %q", data)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrRejected},
		{http.StatusNotFound, ErrRejected},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := NewHTTPClient(srv.URL, "acct-1", "user", "secret", time.Second)
		_, err := c.PlaceCall(context.Background(), PlaceCallParams{})
		if !errors.Is(err, tt.want) {
			t.Errorf("Status %d: error = %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	// A closed server produces a connection error
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClient(srv.URL, "acct-1", "user", "secret", time.Second)
	_, err := c.PlaceCall(context.Background(), PlaceCallParams{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
