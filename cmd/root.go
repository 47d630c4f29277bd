package cmd

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	colour "github.com/fatih/color"
	"github.com/nickromney-org/release-notifier/internal/config"
	"github.com/nickromney-org/release-notifier/internal/connect"
	"github.com/nickromney-org/release-notifier/internal/tlsclient"
	"github.com/nickromney-org/release-notifier/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	currentVersion string
	feedSource     string
	tlsProtocols   []string
	tlsCiphers     []string
	timeoutMillis  int
	githubToken    string
	logLevel       string
	archivePath    string
	showVersion    bool

	// cfg is loaded by the root PersistentPreRunE
	cfg config.Config

	// clientFactory builds every HTTPS client; tests swap in a trust store
	clientFactory tlsclient.Factory

	log = logrus.New()

	// Version information (set via SetVersionInfo from main)
	appVersion = "dev"
	buildTime  = "unknown"
	gitCommit  = "unknown"

	// Colours for output
	green  = colour.New(colour.FgGreen, colour.Bold)
	yellow = colour.New(colour.FgYellow, colour.Bold)
	red    = colour.New(colour.FgRed, colour.Bold)
	cyan   = colour.New(colour.FgCyan)
	bold   = colour.New(colour.Bold)
	grey   = colour.New(colour.FgHiBlack) // Faint grey for timestamps
)

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(version, build, commit string) {
	appVersion = version
	buildTime = build
	gitCommit = commit
}

var rootCmd = &cobra.Command{
	Use:   "release-notifier",
	Short: "Check for integration engine updates and report usage",
	Long: `Check the release feed for versions newer than the one you are running,
register your installation and submit anonymous usage statistics.

Running without a subcommand is the same as "check".`,
	Example: `  # List releases newer than 4.2.0
  release-notifier -c 4.2.0

  # Unseen count only, for status bars
  release-notifier count -c 4.2.0

  # Use another feed and restrict TLS
  release-notifier check -c 4.2.0 --feed owner/repo --tls-protocols TLSv1.2,TLSv1.3

  # JSON output for automation
  release-notifier check -c 4.2.0 --json`,
	PersistentPreRunE: loadConfig,
	RunE:              runCheck,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVarP(&currentVersion, "current", "c", "", "version you are running (e.g., 4.2.0)")
	flags.StringVarP(&feedSource, "feed", "f", "", "feed source: engine, owner/repo, GitHub URL or https feed URL")
	flags.StringSliceVar(&tlsProtocols, "tls-protocols", nil, "allowed TLS protocols (e.g., TLSv1.2,TLSv1.3)")
	flags.StringSliceVar(&tlsCiphers, "tls-ciphers", nil, "allowed TLS cipher suites")
	flags.IntVar(&timeoutMillis, "timeout", 0, "connect and read timeout in milliseconds")
	flags.StringVarP(&githubToken, "token", "t", "", "GitHub token (or GITHUB_TOKEN env var)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&archivePath, "archive", "", "path to the archive database")

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	addCheckFlags(rootCmd)
}

// Execute runs the root command and reports errors on stderr
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// loadConfig merges file, environment and flags into cfg
func loadConfig(cmd *cobra.Command, args []string) error {
	log.SetOutput(cmd.ErrOrStderr())
	if showVersion {
		return nil
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("feed") {
		if strings.HasPrefix(feedSource, "https://") && !strings.Contains(feedSource, "github.com") {
			loaded.FeedURL = feedSource
		} else {
			loaded.Feed = feedSource
			loaded.FeedURL = ""
		}
	}
	if flags.Changed("tls-protocols") {
		loaded.TLS.Protocols = tlsProtocols
	}
	if flags.Changed("tls-ciphers") {
		loaded.TLS.CipherSuites = tlsCiphers
	}
	if flags.Changed("timeout") {
		loaded.TimeoutMillis = timeoutMillis
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("archive") {
		loaded.ArchivePath = archivePath
	}
	loaded.GitHubToken = detectGitHubToken(githubToken, loaded.GitHubToken)

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logrus.ParseLevel(loaded.LogLevel)
	log.SetLevel(level)

	cfg = loaded
	return nil
}

// newService builds the connect service for the loaded configuration
func newService() (*connect.Service, error) {
	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}

	return connect.NewService(endpoints,
		connect.WithTLSPolicy(cfg.TLS),
		connect.WithTimeout(cfg.Timeout()),
		connect.WithFactory(clientFactory),
		connect.WithToken(cfg.GitHubToken),
		connect.WithLogger(log),
	), nil
}

// detectGitHubToken attempts to find a GitHub token from multiple sources
func detectGitHubToken(providedToken, envToken string) string {
	// 1. Use explicitly provided token (via -t flag)
	if providedToken != "" {
		return providedToken
	}

	// 2. GITHUB_TOKEN, automatically available in GitHub Actions
	if envToken != "" {
		return envToken
	}

	// 3. Try to get token from GitHub CLI
	ghToken, err := getGitHubCLIToken()
	if err == nil && ghToken != "" {
		return ghToken
	}

	// 4. No token found - will use unauthenticated requests
	return ""
}

// getGitHubCLIToken attempts to retrieve a token from the GitHub CLI
func getGitHubCLIToken() (string, error) {
	cmd := exec.Command("gh", "auth", "token")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned empty")
	}

	return token, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "release-notifier %s\n", appVersion)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}

// printError maps error classes to a coloured hint
func printError(w io.Writer, err error) {
	red.Fprintf(w, "\n❌ Error: %v\n\n", err)

	var remoteErr *types.RemoteError
	var transportErr *types.TransportError
	var decodeErr *types.DecodeError

	switch {
	case errors.As(err, &remoteErr) && (remoteErr.StatusCode == 403 || remoteErr.StatusCode == 429):
		yellow.Fprintln(w, "⚠️  The feed refused the request, possibly a rate limit")
		yellow.Fprintln(w)
		yellow.Fprintln(w, "   Unauthenticated requests are limited to 60 per hour.")
		yellow.Fprintln(w, "   Authenticated requests get 5,000 per hour.")
		yellow.Fprintln(w)
		yellow.Fprintln(w, "💡 Authentication options (auto-detected in order):")
		yellow.Fprintln(w, "   1. Use the -t flag: release-notifier -t YOUR_TOKEN")
		yellow.Fprintln(w, "   2. Set GITHUB_TOKEN environment variable")
		yellow.Fprintln(w, "   3. GitHub CLI: gh auth login (automatically detected)")
	case errors.As(err, &remoteErr):
		yellow.Fprintf(w, "ℹ️  %s answered with status %d\n", remoteErr.URL, remoteErr.StatusCode)
	case errors.As(err, &transportErr):
		yellow.Fprintln(w, "ℹ️  Possible causes:")
		yellow.Fprintln(w, "   • Network connectivity issues")
		yellow.Fprintln(w, "   • TLS protocol or cipher restrictions the server does not support")
		yellow.Fprintln(w, "   • Firewall blocking the update server")
	case errors.As(err, &decodeErr):
		yellow.Fprintln(w, "ℹ️  The release feed returned data in an unexpected format")
	}
}
