// Package console implements the operator command surface: list and select
// the target window, query status, request a graceful shutdown. It reads on
// its own goroutine and never blocks channel or timer processing.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uzairdeveloper223/DriveDroid/pkg/session"
)

// Console is the interactive operator loop.
type Console struct {
	session  *session.Session
	in       *bufio.Scanner
	out      io.Writer
	shutdown func()
}

// New creates a console reading commands from in. shutdown is invoked on
// the quit command.
func New(sess *session.Session, in io.Reader, out io.Writer, shutdown func()) *Console {
	return &Console{
		session:  sess,
		in:       bufio.NewScanner(in),
		out:      out,
		shutdown: shutdown,
	}
}

// Run processes operator commands until the input closes, the quit command
// arrives or ctx is cancelled. Should be called in a goroutine.
func (c *Console) Run(ctx context.Context) {
	c.printHelp()

	for c.in.Scan() {
		if ctx.Err() != nil {
			return
		}

		switch strings.ToLower(strings.TrimSpace(c.in.Text())) {
		case "w":
			c.selectTarget()
		case "s":
			c.printStatus()
		case "q":
			fmt.Fprintln(c.out, "Shutting down...")
			c.shutdown()
			return
		case "":
			// ignore empty lines
		default:
			c.printHelp()
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "Commands: [w] switch window  [s] status  [q] quit")
}

func (c *Console) printStatus() {
	st := c.session.Status()
	target := st.Target
	if target == "" {
		target = "none (focused window)"
	}
	fmt.Fprintf(c.out, "Connected: %v\n", st.Connected)
	fmt.Fprintf(c.out, "Mode:      %s\n", st.Mode)
	fmt.Fprintf(c.out, "Target:    %s\n", target)
}

// selectTarget prints the candidate windows and applies the operator's
// choice. An out-of-range index disables targeting; garbage leaves the
// previous target active.
func (c *Console) selectTarget() {
	targets, err := c.session.ListTargets()
	if err != nil {
		fmt.Fprintln(c.out, "No windows found via wmctrl. Is wmctrl installed?")
		fmt.Fprintln(c.out, "  sudo apt install wmctrl")
		return
	}
	if len(targets) == 0 {
		fmt.Fprintln(c.out, "No visible windows found. Input will go to the focused window.")
		return
	}

	fmt.Fprintln(c.out, "Available windows:")
	current := c.session.Target()
	for i, t := range targets {
		marker := ""
		if t.ID == current {
			marker = "  <- current"
		}
		fmt.Fprintf(c.out, "  [%d] %s%s\n", i, t.Name, marker)
	}
	fmt.Fprintf(c.out, "  [%d] Disable targeting\n", len(targets))
	fmt.Fprintf(c.out, "Select [0-%d]: ", len(targets))

	if !c.in.Scan() {
		return
	}
	idx, err := strconv.Atoi(strings.TrimSpace(c.in.Text()))
	if err != nil {
		fmt.Fprintln(c.out, "Invalid input, no change.")
		return
	}

	if idx < 0 || idx >= len(targets) {
		if err := c.session.Retarget(""); err != nil {
			fmt.Fprintf(c.out, "Failed to disable targeting: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "Targeting disabled.")
		return
	}

	if err := c.session.Retarget(targets[idx].ID); err != nil {
		fmt.Fprintf(c.out, "Failed to switch target: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Target -> %s\n", targets[idx].Name)
}
