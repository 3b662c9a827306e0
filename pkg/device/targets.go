package device

import (
	"fmt"
	"os/exec"
	"strings"
)

// Target is one addressable output window.
type Target struct {
	ID   string
	Name string
}

// TargetLister enumerates and focuses candidate output windows.
type TargetLister interface {
	List() ([]Target, error)
	Focus(id string) error
}

// WmctrlTargets enumerates X11 windows through the wmctrl tool. A missing
// wmctrl binary disables targeting; input then goes to the focused window.
type WmctrlTargets struct{}

// List returns the visible windows, or an empty list when wmctrl is
// unavailable.
func (WmctrlTargets) List() ([]Target, error) {
	out, err := exec.Command("wmctrl", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("wmctrl list failed: %w", err)
	}

	return parseWindowList(string(out)), nil
}

// parseWindowList parses `wmctrl -l` output. Each line is
// <id> <desktop> <host> <title>, columns padded with runs of spaces and the
// title free to contain spaces itself.
func parseWindowList(out string) []Target {
	var targets []Target
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		cols := splitColumns(line, 4)
		if len(cols) < 4 {
			continue
		}
		targets = append(targets, Target{ID: cols[0], Name: cols[3]})
	}
	return targets
}

// splitColumns splits line on runs of whitespace into at most n columns; the
// final column keeps the rest of the line.
func splitColumns(line string, n int) []string {
	cols := make([]string, 0, n)
	rest := line
	for len(cols) < n-1 {
		rest = strings.TrimLeft(rest, " \t")
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			break
		}
		cols = append(cols, rest[:i])
		rest = rest[i+1:]
	}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		cols = append(cols, rest)
	}
	return cols
}

// Focus raises the window with the given id.
func (WmctrlTargets) Focus(id string) error {
	if err := exec.Command("wmctrl", "-i", "-a", id).Run(); err != nil {
		return fmt.Errorf("wmctrl focus failed: %w", err)
	}
	return nil
}
