package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const consoleHelp = `commands:
  s, start     begin capturing
  p, pause     pause capturing
  r, resume    resume capturing
  a, analyze   analyze buffered frames
  n, new       discard frames and start a new session
  state        show engine status
  q, quit      exit`

// Console reads commands line by line and submits them to the dispatcher.
type Console struct {
	d    *Dispatcher
	eng  Controller
	out  io.Writer
	quit func()
}

// NewConsole creates a console writing replies to out. quit is called when
// the user asks to exit.
func NewConsole(d *Dispatcher, eng Controller, out io.Writer, quit func()) *Console {
	return &Console{d: d, eng: eng, out: out, quit: quit}
}

// Run processes lines from in until EOF, quit or ctx cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	fmt.Fprintln(c.out, consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if done := c.handle(ctx, line); done {
				return nil
			}
		}
	}
}

// handle runs one console line and reports whether the console should stop.
func (c *Console) handle(ctx context.Context, line string) bool {
	word := strings.ToLower(strings.TrimSpace(line))
	switch word {
	case "":
		return false
	case "q", "quit", "exit":
		if c.quit != nil {
			c.quit()
		}
		return true
	case "h", "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
		return false
	case "state", "status":
		st := c.eng.Status()
		fmt.Fprintf(c.out, "state=%s buffered=%d/%d chunk=%s\n", st.State, st.Buffered, st.Capacity, st.ChunkElapsed.Round(time.Second))
		return false
	}

	cmd, err := ParseCommand(word)
	if err != nil {
		fmt.Fprintf(c.out, "%v (type help)\n", err)
		return false
	}
	res, err := c.d.Submit(ctx, cmd)
	if err != nil {
		if errors.Is(err, ErrStopped) {
			return true
		}
		fmt.Fprintf(c.out, "error: %v\n", err)
		return false
	}
	c.printResult(res)
	return false
}

func (c *Console) printResult(res Result) {
	switch {
	case res.Error != "":
		fmt.Fprintf(c.out, "%s failed: %s (state=%s)\n", res.Command, res.Error, res.State)
	case !res.Applied:
		fmt.Fprintf(c.out, "%s ignored (state=%s)\n", res.Command, res.State)
	case res.Command == CmdAnalyze:
		fmt.Fprintf(c.out, "analysis %s wrote %d actions (state=%s)\n", res.Session, res.Count, res.State)
	default:
		fmt.Fprintf(c.out, "%s ok (state=%s)\n", res.Command, res.State)
	}
}
