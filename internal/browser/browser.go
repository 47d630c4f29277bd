// Package browser opens URLs in the user's browser, trying a list of
// strategies in order.
package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/skratchdot/open-golang/open"
)

// ErrNoBrowser is returned when every strategy failed
var ErrNoBrowser = errors.New("no browser could be launched")

// Launcher is one way of opening a URL
type Launcher interface {
	Launch(url string) error
}

// LauncherFunc adapts a function to a Launcher
type LauncherFunc func(url string) error

// Launch calls f(url)
func (f LauncherFunc) Launch(url string) error { return f(url) }

// Command launches a URL by starting an executable found on PATH
type Command struct {
	Name string
	Args []string
}

// Launch starts the command with the URL as its last argument
func (c Command) Launch(url string) error {
	path, err := exec.LookPath(c.Name)
	if err != nil {
		return err
	}
	args := append(append([]string{}, c.Args...), url)
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	reap(cmd)
	return nil
}

// reap collects the exit status in the background so no zombie is left
var reap = func(cmd *exec.Cmd) {
	go func() { _ = cmd.Wait() }()
}

// DefaultLaunchers returns the strategies for the current OS, preferred first
func DefaultLaunchers() []Launcher {
	launchers := []Launcher{LauncherFunc(open.Start)}

	switch runtime.GOOS {
	case "darwin":
		launchers = append(launchers, Command{Name: "open"})
	case "windows":
		launchers = append(launchers, Command{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler"}})
	default:
		for _, name := range []string{"xdg-open", "sensible-browser", "x-www-browser", "firefox", "chromium", "google-chrome"} {
			launchers = append(launchers, Command{Name: name})
		}
	}

	return launchers
}

// Open tries each launcher in turn and stops at the first success. With no
// launchers given, DefaultLaunchers is used.
func Open(url string, launchers ...Launcher) error {
	if len(launchers) == 0 {
		launchers = DefaultLaunchers()
	}

	var errs []error
	for _, l := range launchers {
		err := l.Launch(url)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}

	return fmt.Errorf("%w: %w", ErrNoBrowser, errors.Join(errs...))
}
