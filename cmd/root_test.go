package cmd

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	colour "github.com/fatih/color"
	"github.com/nickromney-org/release-notifier/internal/browser"
	"github.com/nickromney-org/release-notifier/internal/config"
	"github.com/nickromney-org/release-notifier/internal/tlsclient"
	"github.com/nickromney-org/release-notifier/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const populatedFixture = "../internal/feed/testdata/releases-populated.json"

func TestMain(m *testing.M) {
	colour.NoColor = true
	os.Exit(m.Run())
}

// resetCommandState clears flag values left over from a previous Execute
func resetCommandState(t *testing.T) {
	t.Helper()

	configPath, currentVersion, feedSource, githubToken, logLevel, archivePath = "", "", "", "", "", ""
	tlsProtocols, tlsCiphers = nil, nil
	timeoutMillis = 0
	showVersion = false
	jsonOutput, ciOutput, quiet, verbose, openBrowser = false, false, false, false, false
	archiveList, archiveRemove, archiveAll = false, false, false
	serverID, user = "", types.User{}
	usageData, usageDataFile, usageServer = "", "", false
	watchInterval = 30 * time.Minute
	cfg = config.Config{}
	clientFactory = tlsclient.Factory{}

	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		c.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}

	for _, key := range []string{"FEED", "FEED_URL", "REGISTRATION_URL", "USAGE_URL", "TIMEOUT_MS", "LOG_LEVEL", "ARCHIVE_PATH", "SERVER_ID"} {
		t.Setenv(config.EnvPrefix+key, "")
	}
	t.Setenv("GITHUB_TOKEN", "")
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// feedServer serves the populated fixture, or status when non-zero
func feedServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	body, err := os.ReadFile(populatedFixture)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	clientFactory = tlsclient.Factory{RootCAs: pool}

	return srv, &hits
}

func TestCheckCommandJSON(t *testing.T) {
	resetCommandState(t)
	srv, hits := feedServer(t, 0)
	archiveDB := filepath.Join(t.TempDir(), "archive.db")

	stdout, _, err := executeCommand(t, "check", "-c", "4.2.0", "--feed", srv.URL+"/releases",
		"-t", "test-token", "--archive", archiveDB, "--json")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	var result checkResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))

	assert.True(t, result.ValidVersion)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 7, result.Unseen)
	require.Len(t, result.Notifications, 7)
	assert.Equal(t, int64(248000000), result.Notifications[0].ID)
	assert.Equal(t, "Open Integration Engine 4.5.2", result.Notifications[0].Name)
	assert.Equal(t, srv.URL+"/releases", result.FeedURL)

	_, statErr := os.Stat(archiveDB)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "check must not create the archive")
}

func TestArchiveThenCount(t *testing.T) {
	resetCommandState(t)
	srv, _ := feedServer(t, 0)
	archiveDB := filepath.Join(t.TempDir(), "nested", "archive.db")
	common := []string{"--feed", srv.URL + "/releases", "-t", "test-token", "--archive", archiveDB}

	stdout, _, err := executeCommand(t, append([]string{"archive", "248000000", "246624609"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Archived 2 notification(s)")

	resetCommandState(t)
	clientFactory = trustedFactory(srv)
	stdout, _, err = executeCommand(t, append([]string{"count", "-c", "4.2.0"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "5\n", stdout)

	resetCommandState(t)
	stdout, _, err = executeCommand(t, "archive", "--list", "--archive", archiveDB)
	require.NoError(t, err)
	assert.Equal(t, "246624609\n248000000\n", stdout)

	resetCommandState(t)
	stdout, _, err = executeCommand(t, "archive", "--remove", "248000000", "--archive", archiveDB)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Unarchived 1 notification(s)")
}

func TestCountCommandSwallowsFailures(t *testing.T) {
	resetCommandState(t)
	srv, hits := feedServer(t, http.StatusInternalServerError)

	stdout, stderr, err := executeCommand(t, "count", "-c", "4.2.0", "--feed", srv.URL+"/releases",
		"-t", "test-token", "--archive", filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	assert.Equal(t, "0\n", stdout)
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, stderr, "failed to get notification count")
}

func TestCheckCommandServerError(t *testing.T) {
	resetCommandState(t)
	srv, _ := feedServer(t, http.StatusInternalServerError)

	_, _, err := executeCommand(t, "check", "-c", "4.2.0", "--feed", srv.URL+"/releases",
		"-t", "test-token", "--archive", filepath.Join(t.TempDir(), "a.db"))
	require.Error(t, err)

	var remoteErr *types.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
}

func TestCheckCommandInvalidVersion(t *testing.T) {
	resetCommandState(t)
	srv, hits := feedServer(t, 0)

	stdout, _, err := executeCommand(t, "check", "-c", "not.a.version", "--feed", srv.URL+"/releases",
		"-t", "test-token", "--archive", filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "is not a semantic version")
	assert.Equal(t, int32(0), hits.Load())
}

func TestCheckCommandRequiresVersion(t *testing.T) {
	resetCommandState(t)

	_, _, err := executeCommand(t, "check", "-t", "test-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current version is required")
}

func TestInvalidConfiguration(t *testing.T) {
	resetCommandState(t)

	_, _, err := executeCommand(t, "count", "-c", "4.2.0", "-t", "test-token", "--feed", "http://plain.example.com/feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestVersionFlag(t *testing.T) {
	resetCommandState(t)
	SetVersionInfo("1.2.3", "2025-10-01", "abc123")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	stdout, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "release-notifier 1.2.3")
	assert.Contains(t, stdout, "Git commit: abc123")
}

func trustedFactory(srv *httptest.Server) tlsclient.Factory {
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return tlsclient.Factory{RootCAs: pool}
}

func sampleNotifications() []types.Notification {
	return []types.Notification{
		{ID: 3, Name: "Open Integration Engine 4.5.2", Date: "2025-09-30T14:00:00Z", Content: "<p>Fixes</p>"},
		{ID: 2, Name: "Open Integration Engine 4.5.1", Date: "2025-09-07T14:00:00Z"},
	}
}

func TestNewCheckResult(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		archived   map[int64]struct{}
		wantValid  bool
		wantUnseen int
	}{
		{"nothing archived", "4.2.0", nil, true, 2},
		{"one archived", "4.2.0", map[int64]struct{}{3: {}}, true, 1},
		{"unrelated archived", "4.2.0", map[int64]struct{}{99: {}}, true, 2},
		{"invalid version", "4.2", nil, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newCheckResult(tt.current, "https://feed", sampleNotifications(), tt.archived)
			if result.ValidVersion != tt.wantValid {
				t.Errorf("expected valid %v, got %v", tt.wantValid, result.ValidVersion)
			}
			if result.Total != 2 {
				t.Errorf("expected total 2, got %d", result.Total)
			}
			if result.Unseen != tt.wantUnseen {
				t.Errorf("expected unseen %d, got %d", tt.wantUnseen, result.Unseen)
			}
		})
	}
}

func TestOutputJSON(t *testing.T) {
	result := newCheckResult("4.2.0", "https://feed", sampleNotifications(), map[int64]struct{}{2: {}})

	var buf bytes.Buffer
	if err := outputJSON(&buf, result); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"current_version", "valid_version", "feed_url", "total", "unseen", "notifications", "checked_at"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}

	notifications := decoded["notifications"].([]interface{})
	second := notifications[1].(map[string]interface{})
	for _, key := range []string{"id", "name", "date", "content", "archived"} {
		if _, ok := second[key]; !ok {
			t.Errorf("missing notification key %q", key)
		}
	}
	if second["archived"] != true {
		t.Errorf("expected second notification to be archived")
	}
}

func TestOutputCI(t *testing.T) {
	tests := []struct {
		name         string
		current      string
		archived     map[int64]struct{}
		wantContains []string
		wantMissing  []string
	}{
		{
			name:         "updates available",
			current:      "4.2.0",
			wantContains: []string{"2\n", "::notice title=Update available::Open Integration Engine 4.5.2", "Open Integration Engine 4.5.1"},
		},
		{
			name:         "archived skipped",
			current:      "4.2.0",
			archived:     map[int64]struct{}{2: {}},
			wantContains: []string{"1\n", "4.5.2"},
			wantMissing:  []string{"4.5.1"},
		},
		{
			name:         "invalid version",
			current:      "four",
			wantContains: []string{"::warning title=Update check skipped::four"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			outputCI(&buf, newCheckResult(tt.current, "https://feed", sampleNotifications(), tt.archived))

			for _, want := range tt.wantContains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
				}
			}
			for _, missing := range tt.wantMissing {
				if strings.Contains(buf.String(), missing) {
					t.Errorf("expected output not to contain %q, got:\n%s", missing, buf.String())
				}
			}
		})
	}
}

func TestOutputTerminal(t *testing.T) {
	t.Cleanup(func() { quiet, verbose = false, false })

	tests := []struct {
		name          string
		notifications []types.Notification
		archived      map[int64]struct{}
		quiet         bool
		verbose       bool
		wantContains  []string
		wantMissing   []string
	}{
		{
			name:         "up to date",
			wantContains: []string{"Version 4.2.0 is up to date"},
			wantMissing:  []string{"Available Updates"},
		},
		{
			name:          "updates",
			notifications: sampleNotifications(),
			wantContains:  []string{"2 new releases available (2 unseen)", "Available Updates", "30 Sep 2025"},
			wantMissing:   []string{"<p>Fixes</p>"},
		},
		{
			name:          "all archived",
			notifications: sampleNotifications(),
			archived:      map[int64]struct{}{2: {}, 3: {}},
			wantContains:  []string{"2 new releases, all archived", "(archived)"},
		},
		{
			name:          "quiet",
			notifications: sampleNotifications(),
			quiet:         true,
			wantContains:  []string{"2 new releases available"},
			wantMissing:   []string{"Available Updates"},
		},
		{
			name:          "verbose",
			notifications: sampleNotifications(),
			verbose:       true,
			wantContains:  []string{"    <p>Fixes</p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiet, verbose = tt.quiet, tt.verbose

			var buf bytes.Buffer
			outputTerminal(&buf, newCheckResult("4.2.0", "https://feed", tt.notifications, tt.archived))

			for _, want := range tt.wantContains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
				}
			}
			for _, missing := range tt.wantMissing {
				if strings.Contains(buf.String(), missing) {
					t.Errorf("expected output not to contain %q, got:\n%s", missing, buf.String())
				}
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", &types.RemoteError{URL: "https://feed", StatusCode: 403}, "possibly a rate limit"},
		{"server error", &types.RemoteError{URL: "https://feed", StatusCode: 500}, "answered with status 500"},
		{"transport", &types.TransportError{URL: "https://feed", Err: errors.New("refused")}, "Network connectivity issues"},
		{"decode", &types.DecodeError{Err: errors.New("bad")}, "unexpected format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output, got:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestDetectGitHubToken(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		env      string
		want     string
	}{
		{"provided token", "ghp_flag", "ghp_env", "ghp_flag"},
		{"environment token", "", "ghp_env", "ghp_env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectGitHubToken(tt.provided, tt.env); got != tt.want {
				t.Errorf("detectGitHubToken(%q, %q) = %q, want %q", tt.provided, tt.env, got, tt.want)
			}
		})
	}
}

func TestOpenReleasesPage(t *testing.T) {
	t.Cleanup(func() { launchers = browser.DefaultLaunchers })

	var opened string
	launchers = func() []browser.Launcher {
		return []browser.Launcher{browser.LauncherFunc(func(url string) error {
			opened = url
			return nil
		})}
	}

	cfg = config.Default()
	openReleasesPage()
	if opened != "https://github.com/openintegrationengine/engine/releases" {
		t.Errorf("unexpected page opened: %q", opened)
	}

	opened = ""
	cfg.FeedURL = "https://feed.example.com/releases.json"
	openReleasesPage()
	if opened != "" {
		t.Errorf("expected nothing to be opened, got %q", opened)
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"248000000", "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 248000000 || ids[1] != 1 {
		t.Errorf("unexpected ids %v", ids)
	}

	if _, err := parseIDs([]string{"abc"}); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestReadUsageData(t *testing.T) {
	t.Cleanup(func() { usageData, usageDataFile = "", "" })

	usageData, usageDataFile = "", ""
	got, err := readUsageData(strings.NewReader("ignored"), false)
	require.NoError(t, err)
	assert.Nil(t, got, "no flag means no payload")

	got, err = readUsageData(strings.NewReader("ignored"), true)
	require.NoError(t, err)
	require.NotNil(t, got, "an explicit empty --data is still a payload")
	assert.Equal(t, "", *got)

	usageData = "inline"
	got, err = readUsageData(strings.NewReader("ignored"), true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "inline", *got)

	usageDataFile = "-"
	got, err = readUsageData(strings.NewReader("from stdin"), false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "from stdin", *got)

	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"channels":3}`), 0o600))
	usageDataFile = path
	got, err = readUsageData(nil, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"channels":3}`, *got)
}

func TestUsageCommandSendsEmptyPayload(t *testing.T) {
	resetCommandState(t)

	var hits atomic.Int32
	var gotData []string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = r.ParseForm()
		gotData = r.PostForm["data"]
	}))
	t.Cleanup(srv.Close)
	clientFactory = trustedFactory(srv)
	t.Setenv(config.EnvPrefix+"USAGE_URL", srv.URL+"/UsageStatisticsServlet")

	stdout, _, err := executeCommand(t, "usage", "--server-id", "server-1", "-c", "4.2.0", "--data", "", "-t", "test-token")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage statistics sent")
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{""}, gotData)

	resetCommandState(t)
	t.Setenv(config.EnvPrefix+"USAGE_URL", srv.URL+"/UsageStatisticsServlet")
	_, _, err = executeCommand(t, "usage", "--server-id", "server-1", "-c", "4.2.0", "-t", "test-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usage data given")
	assert.Equal(t, int32(1), hits.Load())
}
