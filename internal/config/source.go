package config

import (
	"fmt"
	"strings"
)

// FeedSource is a GitHub repository whose releases make up the feed
type FeedSource struct {
	Owner string
	Repo  string
}

// Predefined feed sources
var (
	SourceEngine  = FeedSource{Owner: "openintegrationengine", Repo: "engine"}
	SourceConnect = FeedSource{Owner: "nextgenhealthcare", Repo: "connect"}
)

// GetPredefinedSource returns a predefined source by name
func GetPredefinedSource(name string) (*FeedSource, error) {
	sources := map[string]FeedSource{
		"engine":                SourceEngine,
		"oie":                   SourceEngine, // Alias
		"openintegrationengine": SourceEngine, // Alias
		"connect":               SourceConnect,
		"mirth":                 SourceConnect, // Alias
	}

	source, ok := sources[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown feed source: %s", name)
	}
	return &source, nil
}

// ParseFeedSource parses a predefined name, "owner/repo" or a GitHub URL
func ParseFeedSource(s string) (*FeedSource, error) {
	if source, err := GetPredefinedSource(s); err == nil {
		return source, nil
	}

	// https://github.com/owner/repo/releases -> owner/repo
	if strings.Contains(s, "github.com") {
		parts := strings.Split(s, "github.com/")
		if len(parts) == 2 {
			s = strings.TrimSuffix(parts[1], "/")
			s = strings.TrimPrefix(s, "repos/")
			s = strings.Split(s, "/releases")[0]
			s = strings.Split(s, "/tags")[0]
		}
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid feed source: %s (expected: owner/repo or predefined name)", s)
	}

	return &FeedSource{Owner: parts[0], Repo: parts[1]}, nil
}

// FullName returns owner/repo
func (s *FeedSource) FullName() string {
	return fmt.Sprintf("%s/%s", s.Owner, s.Repo)
}

// FeedURL returns the releases API URL
func (s *FeedSource) FeedURL() string {
	return fmt.Sprintf("https://api.github.com/repos/%s/%s/releases", s.Owner, s.Repo)
}

// ReleasesPageURL returns the human-facing releases page
func (s *FeedSource) ReleasesPageURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/releases", s.Owner, s.Repo)
}
