// Package feed retrieves and decodes the remote release feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/nickromney-org/release-notifier/internal/tlsclient"
	"github.com/nickromney-org/release-notifier/pkg/types"
	"golang.org/x/oauth2"
)

// MediaTypeHTML asks GitHub to render release bodies into body_html
const MediaTypeHTML = "application/vnd.github.html+json"

// DefaultURL is the release feed of the engine
const DefaultURL = "https://api.github.com/repos/openintegrationengine/engine/releases"

// GitHubHosts are the hosts a token is sent to unless TokenHosts says otherwise
var GitHubHosts = []string{"api.github.com", "github.com"}

// Fetcher issues one GET per call to a release feed
type Fetcher struct {
	Factory tlsclient.Factory
	// Token is sent as a bearer token when set (raises GitHub's rate limit)
	Token string
	// TokenHosts limits which hosts receive Token; nil means GitHubHosts
	TokenHosts []string
}

// NewFetcher creates a feed fetcher
func NewFetcher(factory tlsclient.Factory, token string) *Fetcher {
	return &Fetcher{Factory: factory, Token: token}
}

// Fetch retrieves the feed and decodes it into records in feed order.
// Non-200 responses fail with *types.RemoteError, network failures with
// *types.TransportError and malformed bodies with *types.DecodeError. No
// partial results are returned.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string, policy tlsclient.TLSPolicy, timeout time.Duration) ([]ReleaseRecord, error) {
	client := f.Factory.Build(policy, timeout)
	defer client.Close()

	ghClient := f.githubClient(client.HTTP)

	req, err := ghClient.NewRequest(http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", MediaTypeHTML)

	resp, err := ghClient.BareDo(ctx, req)
	if err != nil {
		// go-github has already closed the body of error responses
		if resp != nil && resp.Response != nil {
			return nil, &types.RemoteError{URL: feedURL, StatusCode: resp.StatusCode}
		}
		return nil, &types.TransportError{URL: feedURL, Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	body := &trackingReader{r: resp.Body}
	charset := ResolveCharset(resp.Header.Get("Content-Type"))

	var records []ReleaseRecord
	for record, err := range Decode(charset.NewReader(body)) {
		if err != nil {
			if body.err != nil {
				return nil, &types.TransportError{URL: feedURL, Err: body.err}
			}
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func (f *Fetcher) githubClient(httpClient *http.Client) *gh.Client {
	if f.Token == "" {
		return gh.NewClient(httpClient)
	}

	hosts := f.TokenHosts
	if hosts == nil {
		hosts = GitHubHosts
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: f.Token},
	)
	return gh.NewClient(&http.Client{
		Transport: &tokenScope{
			hosts:  hosts,
			authed: &oauth2.Transport{Source: ts, Base: httpClient.Transport},
			plain:  httpClient.Transport,
		},
		CheckRedirect: httpClient.CheckRedirect,
	})
}

// tokenScope sends the token only to the listed hosts, redirects included
type tokenScope struct {
	hosts  []string
	authed http.RoundTripper
	plain  http.RoundTripper
}

func (t *tokenScope) RoundTrip(req *http.Request) (*http.Response, error) {
	if slices.Contains(t.hosts, strings.ToLower(req.URL.Hostname())) {
		return t.authed.RoundTrip(req)
	}
	return t.plain.RoundTrip(req)
}

// drainAndClose consumes what is left of a body so the connection is
// released even when decoding stopped early
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// trackingReader remembers the first read failure so it can be told apart
// from a JSON syntax problem
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
