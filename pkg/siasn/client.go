// Package siasn is the client for the SIASN instansi monitoring API.
package siasn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/lukmanhidayah/siasn-sync/pkg/httpclient"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

const (
	// DefaultBaseURL is the monitoring list endpoint.
	DefaultBaseURL = "https://api-siasn.bkn.go.id/siasn-instansi/pengadaan/usulan/monitoring"

	// DefaultOrigin and DefaultReferer mirror what the portal frontend sends.
	// The API gate rejects requests without them.
	DefaultOrigin  = "https://siasn-instansi.bkn.go.id"
	DefaultReferer = "https://siasn-instansi.bkn.go.id/layananPengadaan/monitoringUsulan"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/139.0.0.0 Safari/537.36 Edg/139.0.0.0"
)

// TokenProvider supplies the current bearer token. The session layer owns
// token refresh; the client only reads.
type TokenProvider interface {
	Token() (string, error)
}

// Config holds SIASN client configuration.
type Config struct {
	BaseURL        string
	DocumentURL    string
	SKDocumentURL  string
	Origin         string
	Referer        string
	JenisPengadaan string
}

// Client talks to the SIASN monitoring endpoints.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	tokens TokenProvider
	logger ectologger.Logger
}

// NewClient creates a SIASN API client.
func NewClient(cfg Config, http *httpclient.Client, tokens TokenProvider, logger ectologger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.JenisPengadaan == "" {
		cfg.JenisPengadaan = "02"
	}
	return &Client{
		cfg:    cfg,
		http:   http,
		tokens: tokens,
		logger: logger,
	}
}

// ListParams are the monitoring list filters. Zero values are sent as empty
// strings; the upstream treats empty filters as "no filter".
type ListParams struct {
	NoPeserta      string
	Nama           string
	TglUsulan      string
	JenisFormasiID string
	StatusUsulan   string
	Periode        string
	Limit          int
	Offset         int
}

// ListResponse is one page from the monitoring endpoint. Items stay raw so
// the fetcher can stream them to disk without re-encoding.
type ListResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta struct {
		Total json.RawMessage `json:"total"`
	} `json:"meta"`
}

// Total returns the reported total record count, 0 when absent.
func (r *ListResponse) Total() int {
	return models.ParseTotal(r.Meta.Total)
}

// ListUsulan fetches one page of monitoring records.
func (c *Client) ListUsulan(ctx context.Context, params ListParams) (*ListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "siasn.Client.ListUsulan")
	defer span.End()

	q := url.Values{}
	q.Set("no_peserta", params.NoPeserta)
	q.Set("nama", params.Nama)
	q.Set("tgl_usulan", params.TglUsulan)
	q.Set("jenis_pengadaan_id", c.cfg.JenisPengadaan)
	q.Set("jenis_formasi_id", params.JenisFormasiID)
	q.Set("status_usulan", params.StatusUsulan)
	q.Set("periode", params.Periode)
	q.Set("limit", strconv.Itoa(params.Limit))
	q.Set("offset", strconv.Itoa(params.Offset))

	headers, err := c.headers()
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Get(ctx, c.cfg.BaseURL+"?"+q.Encode(), headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httperror.NewHTTPErrorf(resp.StatusCode, "monitoring list returned %d: %s",
			resp.StatusCode, truncate(resp.Body, 512))
	}

	var page ListResponse
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode monitoring page: %w", err)
	}
	return &page, nil
}

// PointLookup queries the monitoring endpoint for a single participant
// number. Returns nil when the upstream has no record for it.
func (c *Client) PointLookup(ctx context.Context, noPeserta string) (json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "siasn.Client.PointLookup")
	defer span.End()

	page, err := c.ListUsulan(ctx, ListParams{NoPeserta: noPeserta, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, nil
	}
	return page.Data[0], nil
}

// DocumentKind selects which signed-document endpoint to hit.
type DocumentKind string

const (
	DocumentPertek DocumentKind = "pertek"
	DocumentSK     DocumentKind = "sk"
)

// FetchDocument retrieves a signed PDF by its opaque record id.
func (c *Client) FetchDocument(ctx context.Context, kind DocumentKind, itemID string) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "siasn.Client.FetchDocument")
	defer span.End()

	if itemID == "" {
		return nil, fmt.Errorf("document id is empty")
	}

	base := c.cfg.DocumentURL
	if kind == DocumentSK {
		base = c.cfg.SKDocumentURL
	}
	if base == "" {
		return nil, fmt.Errorf("no document endpoint configured for kind %q", kind)
	}

	headers, err := c.headers()
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Get(ctx, base+"/"+url.PathEscape(itemID), headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httperror.NewHTTPErrorf(resp.StatusCode, "document fetch returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// headers builds the browser-matching request headers. A missing bearer
// token fails the calling operation outright; an unauthenticated request
// would only come back as a misleading upstream 401.
func (c *Client) headers() (map[string]string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("no bearer token available: %w", err)
	}
	return map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9,id;q=0.8",
		"Origin":          c.cfg.Origin,
		"Referer":         c.cfg.Referer,
		"User-Agent":      userAgent,
		"Authorization":   "Bearer " + token,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
