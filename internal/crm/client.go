package crm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"dsa-mcp/internal/orders"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrUnauthorized is returned when the CRM answers with a login page instead of a report.
var ErrUnauthorized = errors.New("CRM returned an HTML page instead of the report; check CRM_COOKIE")

// Client fetches delivery statistics from the CRM.
type Client interface {
	FetchOrders(ctx context.Context, from, to time.Time) ([]orders.Record, error)
}

// Config holds the connection settings for the CRM.
type Config struct {
	BaseURL string
	// Cookie is sent verbatim as the Cookie header.
	Cookie string

	ChunkDays    int
	RequestDelay time.Duration
	Concurrency  int
	Timeout      time.Duration

	// Location is used for report timestamps; nil means time.Local.
	Location *time.Location
}

type httpClient struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a CRM client, filling unset settings with defaults.
func NewClient(cfg Config) Client {
	if cfg.ChunkDays <= 0 {
		cfg.ChunkDays = 14
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &httpClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchOrders downloads the report for [from, to] in chunks and returns the
// deduplicated records sorted by order time. An unauthorized chunk aborts the
// fetch; other failed chunks are logged and skipped.
func (c *httpClient) FetchOrders(ctx context.Context, from, to time.Time) ([]orders.Record, error) {
	chunks := Chunks(from, to, c.cfg.ChunkDays)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty date range %s..%s", from.Format(dateLayout), to.Format(dateLayout))
	}
	log.Info().Int("chunks", len(chunks)).Str("from", from.Format(dateLayout)).Str("to", to.Format(dateLayout)).Msg("Fetching delivery statistics")

	results := make([][]orders.Record, len(chunks))
	failures := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			recs, err := c.fetchChunk(gctx, chunk)
			if errors.Is(err, ErrUnauthorized) {
				return err
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("chunk", chunk.String()).Msg("Skipping failed chunk")
				failures[i] = err
				return nil
			}
			log.Debug().Str("chunk", chunk.String()).Int("records", len(recs)).Msg("Chunk fetched")
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []orders.Record
	var firstErr error
	for i := range chunks {
		all = append(all, results[i]...)
		if firstErr == nil && failures[i] != nil {
			firstErr = failures[i]
		}
	}
	if len(all) == 0 && firstErr != nil {
		return nil, fmt.Errorf("all chunks failed: %w", firstErr)
	}

	all = orders.Dedupe(all)
	orders.SortByOrderTime(all)
	log.Info().Int("records", len(all)).Msg("Delivery statistics fetched")
	return all, nil
}

func (c *httpClient) fetchChunk(ctx context.Context, chunk DateRange) ([]orders.Record, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fromDate", chunk.From.Format(dateLayout))
	params.Set("toDate", chunk.To.Format(dateLayout))
	reportURL := fmt.Sprintf("%s/logistic/delivery_statistic?%s", c.cfg.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, fmt.Errorf("report not found (404), check CRM_URL")
	default:
		return nil, fmt.Errorf("CRM returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if isHTML(body) {
		return nil, ErrUnauthorized
	}
	return ParseReport(bytes.NewReader(body), c.cfg.Location)
}

// throttle spaces request starts by RequestDelay.
func (c *httpClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cfg.RequestDelay - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	log.Debug().Dur("wait", wait).Msg("Throttling CRM request")
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isHTML(body []byte) bool {
	head := body
	if len(head) > 500 {
		head = head[:500]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<html"))
}

// OrderURL returns the CRM page of an order.
func OrderURL(baseURL, orderID string) string {
	return fmt.Sprintf("%s/crm/order/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(strings.TrimSpace(orderID)))
}
