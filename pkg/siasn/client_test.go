package siasn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukmanhidayah/siasn-sync/pkg/httpclient"
)

type staticToken struct{}

func (staticToken) Token() (string, error) { return "test-token", nil }

type noToken struct{}

func (noToken) Token() (string, error) { return "", errors.New("sso_token not found") }

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newClient(t *testing.T, cfg Config, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if cfg.BaseURL == "" {
		cfg.BaseURL = server.URL
	}
	if cfg.DocumentURL == "" {
		cfg.DocumentURL = server.URL + "/pertek"
	}
	if cfg.SKDocumentURL == "" {
		cfg.SKDocumentURL = server.URL + "/sk"
	}

	logger := testLogger()
	return NewClient(cfg, httpclient.NewClient(httpclient.DefaultConfig(), logger), staticToken{}, logger)
}

func TestListUsulanSendsExpectedRequest(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth, gotOrigin string

	client := newClient(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		gotAuth = r.Header.Get("Authorization")
		gotOrigin = r.Header.Get("Origin")
		fmt.Fprint(w, `{"data":[{"id":"a"},{"id":"b"}],"meta":{"total":2}}`)
	}))

	page, err := client.ListUsulan(context.Background(), ListParams{
		NoPeserta: "P1",
		Limit:     100,
		Offset:    200,
	})
	require.NoError(t, err)

	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Total())

	assert.Equal(t, "P1", gotQuery["no_peserta"])
	assert.Equal(t, "02", gotQuery["jenis_pengadaan_id"])
	assert.Equal(t, "100", gotQuery["limit"])
	assert.Equal(t, "200", gotQuery["offset"])
	for _, key := range []string{"nama", "tgl_usulan", "jenis_formasi_id", "status_usulan", "periode"} {
		_, present := gotQuery[key]
		assert.True(t, present, "query param %s should be present", key)
	}

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, DefaultOrigin, gotOrigin)
}

func TestRequestsFailWithoutBearerToken(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	t.Cleanup(server.Close)

	logger := testLogger()
	client := NewClient(Config{BaseURL: server.URL, DocumentURL: server.URL + "/pertek"},
		httpclient.NewClient(httpclient.DefaultConfig(), logger), noToken{}, logger)

	_, err := client.ListUsulan(context.Background(), ListParams{Limit: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bearer token")

	_, err = client.FetchDocument(context.Background(), DocumentPertek, "item-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bearer token")

	// the failure is local; nothing unauthenticated goes upstream
	assert.Equal(t, 0, requests)
}

func TestListUsulanNon2xx(t *testing.T) {
	client := newClient(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	_, err := client.ListUsulan(context.Background(), ListParams{Limit: 10})
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err))
}

func TestPointLookup(t *testing.T) {
	client := newClient(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("no_peserta") == "P1" {
			fmt.Fprint(w, `{"data":[{"id":"found"}],"meta":{"total":1}}`)
			return
		}
		fmt.Fprint(w, `{"data":[],"meta":{"total":0}}`)
	}))

	raw, err := client.PointLookup(context.Background(), "P1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"found"}`, string(raw))

	raw, err = client.PointLookup(context.Background(), "P2")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFetchDocument(t *testing.T) {
	client := newClient(t, Config{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pertek/item-1":
			w.Write([]byte("%PDF-pertek"))
		case "/sk/item-1":
			w.Write([]byte("%PDF-sk"))
		default:
			http.NotFound(w, r)
		}
	}))

	body, err := client.FetchDocument(context.Background(), DocumentPertek, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-pertek", string(body))

	body, err = client.FetchDocument(context.Background(), DocumentSK, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-sk", string(body))

	_, err = client.FetchDocument(context.Background(), DocumentPertek, "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	_, err = client.FetchDocument(context.Background(), DocumentPertek, "")
	require.Error(t, err)
}
