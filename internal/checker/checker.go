// Package checker talks to the third-party indexation api.
//
// A batch always yields one result per input url. A url that can't be checked
// is reported as not indexed anywhere, with the cause kept on the result, so a
// single bad url never fails the batch.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/logger"
	"github.com/jdholdren/indexwatch/internal/metrics"
)

// DefaultBaseURL is the indexation api endpoint.
const DefaultBaseURL = "https://arsenkin.ru/tools/blog/api-indexation"

var ErrMissingKey = errors.New("api key is not configured")

type (
	// Result is the outcome of checking a single url.
	Result struct {
		URL             string
		Google          bool
		Yandex          bool
		YandexIndexDate *time.Time
		CheckedAt       time.Time

		// Why the url couldn't be checked, nil on success
		Err error
	}

	Config struct {
		BaseURL     string
		Concurrency int           // Urls checked at once
		Timeout     time.Duration // Per url
	}

	// Client checks urls against the indexation api.
	Client struct {
		baseURL     string
		httpClient  *http.Client
		concurrency int
		timeout     time.Duration
		metrics     *metrics.Metrics
		now         func() time.Time
	}
)

// IndexationResult converts the check into the row that gets stored.
func (r Result) IndexationResult() indexwatch.IndexationResult {
	return indexwatch.IndexationResult{
		URL:             r.URL,
		Google:          r.Google,
		Yandex:          r.Yandex,
		Date:            r.CheckedAt,
		YandexIndexDate: r.YandexIndexDate,
	}
}

func New(cfg Config, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{},
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		metrics:     m,
		now:         time.Now,
	}
}

// Check checks every url with the key, returning the results in input order.
//
// At most the configured concurrency of urls are in flight. Once ctx is done
// no further url is started and the context's error is returned.
func (c *Client) Check(ctx context.Context, key string, urls []string) ([]Result, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingKey
	}

	var (
		checkedAt = c.now().UTC()
		results   = make([]Result, len(urls))
		g         errgroup.Group
	)
	g.SetLimit(c.concurrency)

	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}

		// Blocks while the pool is full
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			res := c.checkOne(ctx, key, u)
			res.CheckedAt = checkedAt
			if res.Err != nil {
				slog.WarnContext(
					logger.Ctx(ctx, slog.String("url", u)),
					"indexation check failed, recording as not indexed",
					"error", res.Err,
				)
				res = Result{URL: u, CheckedAt: checkedAt, Err: res.Err}
			}
			results[i] = res

			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// The body returned by the indexation api.
type checkResp struct {
	Google          *bool   `json:"google"`
	Yandex          *bool   `json:"yandex"`
	YandexIndexDate *string `json:"yandex_indexdate"`
	Error           string  `json:"error"`
}

func (c *Client) checkOne(ctx context.Context, key, target string) (res Result) {
	res.URL = target

	start := time.Now()
	defer func() {
		c.metrics.CheckDuration.Observe(time.Since(start).Seconds())
		c.metrics.ChecksTotal.WithLabelValues(metrics.Outcome(res.Err)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		res.Err = fmt.Errorf("error parsing api url: %w", err)
		return res
	}
	q := u.Query()
	q.Set("key", key)
	q.Set("url", target)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		res.Err = fmt.Errorf("error creating request: %w", err)
		return res
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Don't leak the key through the url in the error
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		res.Err = fmt.Errorf("error calling indexation api: %w", err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		res.Err = fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return res
	}

	var body checkResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		res.Err = fmt.Errorf("error decoding response: %w", err)
		return res
	}
	if body.Google == nil || body.Yandex == nil {
		msg := "response is missing google or yandex"
		if body.Error != "" {
			msg = body.Error
		}
		res.Err = fmt.Errorf("malformed response: %s", msg)
		return res
	}

	res.Google = *body.Google
	res.Yandex = *body.Yandex
	if body.YandexIndexDate != nil {
		res.YandexIndexDate = parseDate(*body.YandexIndexDate)
	}

	return res
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

// Parses the first-indexed date reported for yandex. Anything unparseable is
// treated as unknown.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}
