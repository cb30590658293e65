// Package fetch retrieves the remote CSV export over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ core.Fetcher = (*HTTPFetcher)(nil)

// ErrTooLarge is returned when the response exceeds the configured size cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// Options configures an HTTPFetcher.
type Options struct {
	URL       string
	Timeout   time.Duration // Whole-request bound; the caller's context may be shorter
	MaxBytes  int64         // Body size cap; <= 0 means unlimited
	UserAgent string
	Encoding  string // Overrides the charset declared by the server
}

// HTTPFetcher downloads the export with a single GET. It never retries:
// a failed run is retried by the next scheduled invocation.
type HTTPFetcher struct {
	client *resty.Client
	opts   Options
}

// NewHTTPFetcher creates a fetcher for opts.URL.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &HTTPFetcher{client: client, opts: opts}
}

// Fetch performs the GET and returns the raw body with its declared charset.
// Non-2xx statuses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context) (core.Payload, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(f.opts.URL)
	if err != nil {
		return core.Payload{}, fmt.Errorf("request: %w", err)
	}

	raw := resp.RawBody()
	defer raw.Close()

	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return core.Payload{}, fmt.Errorf("unexpected status %d %s", code, http.StatusText(code))
	}

	body, err := readLimited(raw, f.opts.MaxBytes)
	if err != nil {
		return core.Payload{}, err
	}

	contentType := resp.Header().Get("Content-Type")
	encoding := f.opts.Encoding
	if encoding == "" {
		encoding = charsetOf(contentType)
	}

	return core.Payload{
		Body:        body,
		Encoding:    encoding,
		ContentType: contentType,
	}, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return body, nil
}

// charsetOf extracts the charset parameter of a Content-Type header.
// Returns "" when absent or unparseable.
func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.Trim(params["charset"], `"' `)
}
