package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "taskflow/internal/log"
)

// maxBodyBytes bounds how much of a remote calendar is read.
const maxBodyBytes = 16 << 20

// Fetcher loads ICS payloads for import from local files or http(s) URLs.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher using client, or a client with a 15s timeout
// when client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Load reads the payload named by location: an http(s) or webcal URL, or
// otherwise a file path.
func (f *Fetcher) Load(ctx context.Context, location string) (Source, []byte, error) {
	if location == "" {
		return Source{}, nil, errors.New("import source is empty")
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") ||
		strings.HasPrefix(location, "webcal://") {
		src := Source{ID: "url", URL: strings.Replace(location, "webcal://", "https://", 1)}
		body, err := f.Fetch(ctx, src)
		return src, body, err
	}

	body, err := os.ReadFile(location)
	if err != nil {
		return Source{}, nil, fmt.Errorf("read %s: %w", location, err)
	}
	return Source{ID: location}, body, nil
}

// Fetch downloads src.URL.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, errors.New("source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Info("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(src.URL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", redactURL(src.URL), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(src.URL), err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", redactURL(src.URL), maxBodyBytes)
	}

	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
	return body, nil
}

// redactURL hides everything after the host of a calendar URL for logging.
// Calendar share links usually embed a secret in the path or query.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	if u == "" {
		return ""
	}
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	} else if j := strings.IndexAny(rest, "?#"); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
