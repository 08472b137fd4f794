// PostgREST [Source] implementation
//
// Talks to a Supabase project's REST endpoint (/rest/v1) with the project API key.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

const restPrefix = "/rest/v1/"

// PostgRESTSource reads the catalog through a PostgREST endpoint.
type PostgRESTSource struct {
	baseURL    string
	apiKey     string
	table      string
	orderKey   string
	httpClient *http.Client
	logger     *log.Logger
}

// PostgRESTOptions configures a [PostgRESTSource].
type PostgRESTOptions struct {
	BaseURL  string
	APIKey   string
	Table    string
	OrderKey string
	Timeout  time.Duration
	Client   *http.Client
	Logger   *log.Logger
}

// NewPostgRESTSource creates a PostgREST-backed source.
func NewPostgRESTSource(opts PostgRESTOptions) *PostgRESTSource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	orderKey := opts.OrderKey
	if orderKey == "" {
		orderKey = "id"
	}

	return &PostgRESTSource{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		table:      opts.Table,
		orderKey:   orderKey,
		httpClient: client,
		logger:     logger,
	}
}

// Name returns the source kind.
func (p *PostgRESTSource) Name() string {
	return shared.SourcePostgREST
}

// Ping issues a one-row HEAD request against the primary table.
func (p *PostgRESTSource) Ping(ctx context.Context) error {
	q := url.Values{"select": {"*"}, "limit": {"1"}}
	resp, err := p.do(ctx, http.MethodHead, p.table, q, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Count asks for an exact count and reads it from the Content-Range header.
func (p *PostgRESTSource) Count(ctx context.Context) (int, error) {
	q := url.Values{"select": {"*"}}
	headers := map[string]string{"Prefer": "count=exact"}

	resp, err := p.do(ctx, http.MethodHead, p.table, q, headers)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// FetchRange fetches one ordered page using a Range header.
func (p *PostgRESTSource) FetchRange(ctx context.Context, offset, limit int, orderKey string) ([]models.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", shared.ErrInvalidArgument)
	}
	if orderKey == "" {
		orderKey = p.orderKey
	}

	q := url.Values{"select": {"*"}, "order": {orderKey + ".asc"}}
	headers := map[string]string{
		"Range-Unit": "items",
		"Range":      fmt.Sprintf("%d-%d", offset, offset+limit-1),
	}

	resp, err := p.do(ctx, http.MethodGet, p.table, q, headers)
	if err != nil {
		// an offset past the end is not an error, just an empty page
		if resp != nil && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			return []models.Record{}, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	return decodeRecords(resp.Body)
}

// FetchAll returns the whole table ordered by the configured key.
func (p *PostgRESTSource) FetchAll(ctx context.Context, table string) ([]models.Record, error) {
	q := url.Values{"select": {"*"}, "order": {p.orderKey + ".asc"}}

	resp, err := p.do(ctx, http.MethodGet, table, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeRecords(resp.Body)
}

// do sends an authenticated request. On a non-2xx status the response is returned alongside
// the error with its body already consumed.
func (p *PostgRESTSource) do(ctx context.Context, method, table string, q url.Values, headers map[string]string) (*http.Response, error) {
	endpoint := p.baseURL + restPrefix + url.PathEscape(table) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	p.logger.Debug("postgrest request", "method", method, "table", table, "range", headers["Range"])

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		var errResp struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			msg = errResp.Message
		}
		return resp, fmt.Errorf("%w: %s %s returned %d: %s", shared.ErrAPIRequest, method, table, resp.StatusCode, msg)
	}

	return resp, nil
}

func decodeRecords(r io.Reader) ([]models.Record, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	v, err := models.ParseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	if v.Kind() != models.KindList {
		return nil, fmt.Errorf("failed to decode records: expected array, got %s", v.Kind())
	}

	records := make([]models.Record, 0, v.Len())
	for i, item := range v.Items() {
		rec, err := models.RecordFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseContentRangeTotal reads N from "0-24/N" or "*/N".
func parseContentRangeTotal(header string) (int, error) {
	_, total, ok := strings.Cut(header, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("%w: no exact count in Content-Range %q", shared.ErrAPIRequest, header)
	}

	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("%w: bad Content-Range %q", shared.ErrAPIRequest, header)
	}
	return n, nil
}
