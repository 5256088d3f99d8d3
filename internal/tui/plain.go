package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/whichguy/claude-craft/internal/client"
	"github.com/whichguy/claude-craft/internal/protocol"
)

// Printer writes transcript entries and status changes as plain lines.
// Safe for concurrent use by the client callbacks and the input loop.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Message prints one server message.
func (p *Printer) Message(m protocol.Message) {
	p.println(Format(m, false))
}

// Status prints a connection status change.
func (p *Printer) Status(s client.Status) {
	p.println("[" + string(s) + "]")
}

func (p *Printer) println(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, text)
}

// Plain sends each input line to the session until in is exhausted, the
// user types /quit, or ctx is cancelled. Send failures are printed and the
// loop continues.
//
// Parameters:
//   - ctx: Lifetime of the loop
//   - session: Where lines are sent
//   - in: Line source, usually stdin
//   - printer: Where send failures are reported
//
// Returns:
//   - error: Read errors other than EOF
func Plain(ctx context.Context, session Session, in io.Reader, printer *Printer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if quitWords[line] {
				return nil
			}
			if err := session.SendLine(line); err != nil {
				printer.Message(protocol.Errorf(err, "Message not sent"))
			}
		}
	}
}

// AttachPlain runs the line-oriented front end.
//
// Parameters:
//   - ctx: Lifetime of the session
//   - opts: Client options; OnMessage and OnStatus are set here
//   - in: Line source
//   - out: Transcript destination
//
// Returns:
//   - error: Client setup or read errors
func AttachPlain(ctx context.Context, opts client.Options, in io.Reader, out io.Writer) error {
	printer := NewPrinter(out)
	opts.OnMessage = printer.Message
	opts.OnStatus = printer.Status

	c, err := client.New(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		printer.println(fmt.Sprintf("server unavailable, retrying: %v", err))
	}
	return Plain(ctx, c, in, printer)
}
