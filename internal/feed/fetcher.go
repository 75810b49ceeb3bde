// Package feed implements the Feed Fetcher (C2): pull a URL, size-cap the
// body, hand it to the RSS/Atom parser, and return a canonical Feed value.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// Fetcher pulls feed URLs over HTTP with a redirect cap, timeout, and a
// streamed size cap enforced against both the advertised Content-Length
// and the running total read.
type Fetcher struct {
	httpClient *http.Client
	sizeCap    int64
	userAgent  string
}

// New creates a Fetcher. redirectLimit caps the number of redirects
// followed; timeout bounds the full request (connect+read); sizeCap bounds
// the response body in bytes.
func New(redirectLimit int, timeout time.Duration, sizeCap int64, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= redirectLimit {
					return fmt.Errorf("feed: stopped after %d redirects", redirectLimit)
				}
				return nil
			},
		},
		sizeCap:   sizeCap,
		userAgent: userAgent,
	}
}

// Pull fetches url and parses the result into a canonical Feed. Errors are
// classified per §4.2: transport failure, too-large body, or parse
// failure.
func (f *Fetcher) Pull(ctx context.Context, url string) (*ParsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.Transport("building feed request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transport(fmt.Sprintf("fetching %s", url), err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > f.sizeCap {
		return nil, domain.ErrTooLarge
	}

	limited := io.LimitReader(resp.Body, f.sizeCap+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, domain.Transport(fmt.Sprintf("reading body of %s", url), err)
	}
	if int64(len(body)) > f.sizeCap {
		return nil, domain.ErrTooLarge
	}

	parsed, err := Parse(body)
	if err != nil {
		return nil, domain.Protocol(fmt.Sprintf("parsing feed %s", url), err)
	}
	return parsed, nil
}
