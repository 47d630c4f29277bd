// Package connect talks to the release feed and the connect server:
// update notifications, user registration and usage statistics.
package connect

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nickromney-org/release-notifier/internal/feed"
	"github.com/nickromney-org/release-notifier/internal/notification"
	"github.com/nickromney-org/release-notifier/internal/tlsclient"
	"github.com/nickromney-org/release-notifier/internal/version"
	"github.com/nickromney-org/release-notifier/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServerURL = "https://connect.mirthcorp.com"
	RegistrationPath = "/RegistrationServlet"
	UsagePath        = "/UsageStatisticsServlet"

	formContentType = "application/x-www-form-urlencoded; charset=UTF-8"
)

// Endpoints are the remote addresses the service talks to
type Endpoints struct {
	FeedURL         string `yaml:"feed_url"`
	RegistrationURL string `yaml:"registration_url"`
	UsageURL        string `yaml:"usage_url"`
}

// DefaultEndpoints returns the production endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		FeedURL:         feed.DefaultURL,
		RegistrationURL: DefaultServerURL + RegistrationPath,
		UsageURL:        DefaultServerURL + UsagePath,
	}
}

// Service performs one-shot requests; it keeps no state between calls and
// never retries. It is safe for concurrent use.
type Service struct {
	endpoints Endpoints
	policy    tlsclient.TLSPolicy
	timeout   time.Duration
	factory   tlsclient.Factory
	fetcher   *feed.Fetcher
	log       logrus.FieldLogger
}

// Option configures a Service
type Option func(*Service)

// WithTLSPolicy sets the protocol and cipher-suite allow-list
func WithTLSPolicy(policy tlsclient.TLSPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithTimeout sets the connect and read timeout
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.timeout = timeout }
}

// WithFactory replaces the client factory (custom trust store)
func WithFactory(factory tlsclient.Factory) Option {
	return func(s *Service) { s.factory = factory }
}

// WithToken sets the GitHub token used for the release feed
func WithToken(token string) Option {
	return func(s *Service) { s.fetcher.Token = token }
}

// WithLogger sets the logger for failures that are not returned to the caller
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a service for the given endpoints
func NewService(endpoints Endpoints, opts ...Option) *Service {
	s := &Service{
		endpoints: endpoints,
		timeout:   tlsclient.DefaultTimeout,
		fetcher:   &feed.Fetcher{},
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fetcher.Factory = s.factory
	return s
}

// Endpoints returns the configured endpoints
func (s *Service) Endpoints() Endpoints {
	return s.endpoints
}

// Register registers a user with the connect server. Status 200 and 302
// count as success; anything else, including transport failures, is
// returned as *types.RegistrationError.
func (s *Service) Register(ctx context.Context, serverID, currentVersion string, user types.User) error {
	userXML, err := types.MarshalUser(user)
	if err != nil {
		return &types.RegistrationError{Err: err}
	}

	form := url.Values{}
	form.Set("serverId", serverID)
	form.Set("version", currentVersion)
	form.Set("user", userXML)

	status, err := s.postForm(ctx, s.endpoints.RegistrationURL, form)
	if err != nil {
		return &types.RegistrationError{Err: err}
	}
	if status != http.StatusOK && status != http.StatusFound {
		return &types.RegistrationError{Err: &types.RemoteError{URL: s.endpoints.RegistrationURL, StatusCode: status}}
	}

	return nil
}

// ReportUsage submits usage statistics and reports whether the server
// answered 200. A nil payload is not sent; an empty one is. Failures are
// logged and never returned.
func (s *Service) ReportUsage(ctx context.Context, serverID, currentVersion string, server bool, data *string) bool {
	if data == nil {
		return false
	}

	form := url.Values{}
	form.Set("serverId", serverID)
	form.Set("version", currentVersion)
	form.Set("server", strconv.FormatBool(server))
	form.Set("data", *data)

	status, err := s.postForm(ctx, s.endpoints.UsageURL, form)
	if err != nil {
		s.log.WithError(err).WithField("url", s.endpoints.UsageURL).Warn("failed to send usage statistics")
		return false
	}
	if status != http.StatusOK {
		s.log.WithFields(logrus.Fields{"url": s.endpoints.UsageURL, "status": status}).Warn("usage statistics rejected")
		return false
	}

	return true
}

// Notifications returns a notification for every feed release newer than
// currentVersion, in feed order. An unparsable currentVersion disables the
// check: the result is empty and no request is made.
func (s *Service) Notifications(ctx context.Context, currentVersion string) ([]types.Notification, error) {
	filter, ok := version.NewFilter(currentVersion)
	if !ok {
		s.log.WithField("version", currentVersion).Debug("running version is not a semantic version, skipping notification check")
		return []types.Notification{}, nil
	}

	records, err := s.fetcher.Fetch(ctx, s.endpoints.FeedURL, s.policy, s.timeout)
	if err != nil {
		return nil, err
	}

	return notification.Map(records, filter)
}

// NotificationCount returns how many new notifications are not archived.
// It never fails: any error is logged and counts as zero.
func (s *Service) NotificationCount(ctx context.Context, currentVersion string, archived map[int64]struct{}) int {
	notifications, err := s.Notifications(ctx, currentVersion)
	if err != nil {
		s.log.WithError(err).Warn("failed to get notification count, defaulting to zero")
		return 0
	}
	return notification.CountUnseen(notifications, archived)
}

// postForm sends a form POST on a fresh client and returns the status code
func (s *Service) postForm(ctx context.Context, endpoint string, form url.Values) (int, error) {
	client := s.factory.Build(s.policy, s.timeout)
	defer client.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, &types.TransportError{URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return resp.StatusCode, nil
}
