// Package dispatch turns one line of console input into a result.
//
// Lines starting with the command prefix are matched against a fixed table of
// built-in verbs and otherwise resolved as file-backed commands. Everything
// else is free-form chat handed to a Responder. Failures from resolution,
// file I/O and rendering come back as ordinary result text; only a failing
// Responder yields Result.Err.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/whichguy/claude-craft/internal/agentsync"
	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/template"
)

// Prefix marks a line as a command.
const Prefix = "/"

// tracerName is the instrumentation scope for dispatch spans.
const tracerName = "github.com/whichguy/claude-craft/internal/dispatch"

// Invocation is a parsed input line. It is not modified after parsing.
type Invocation struct {
	// Verb is the first token including the prefix, or "" for chat.
	Verb string

	// Args are the remaining whitespace-separated tokens.
	Args []string

	// Message is the trimmed input line.
	Message string

	// Context is opaque caller data passed through to the Responder.
	Context map[string]any
}

// IsCommand reports whether the invocation carries a command verb.
func (inv Invocation) IsCommand() bool {
	return inv.Verb != ""
}

// Name returns the verb without its prefix.
func (inv Invocation) Name() string {
	return strings.TrimPrefix(inv.Verb, Prefix)
}

// Parse splits a line into an Invocation.
//
// Parameters:
//   - line: Raw input text
//   - ctx: Opaque context map (may be nil)
//
// Returns:
//   - Invocation: Verb and Args are set only when line starts with Prefix
func Parse(line string, ctx map[string]any) Invocation {
	msg := strings.TrimSpace(line)
	inv := Invocation{Message: msg, Context: ctx}
	if !strings.HasPrefix(msg, Prefix) {
		return inv
	}

	fields := strings.Fields(msg)
	inv.Verb = fields[0]
	inv.Args = fields[1:]
	return inv
}

// NewInvocation builds a command invocation from a verb and argument list.
// A missing prefix is added to verb.
func NewInvocation(verb string, args []string) Invocation {
	verb = strings.TrimSpace(verb)
	if !strings.HasPrefix(verb, Prefix) {
		verb = Prefix + verb
	}
	msg := strings.TrimSpace(verb + " " + strings.Join(args, " "))
	return Invocation{Verb: verb, Args: args, Message: msg}
}

// Result is the outcome of a dispatch.
type Result struct {
	// Text is the rendered output or a diagnostic message.
	Text string

	// Verb is the dispatched verb, or "" for chat.
	Verb string

	// Args are the invocation arguments.
	Args []string

	// Builtin reports whether a built-in verb handled the line.
	Builtin bool

	// Ref is the resolved definition for file-backed commands and templates.
	Ref *definitions.Ref

	// Err is set only when the chat Responder failed.
	Err error
}

// Options configures a Dispatcher.
type Options struct {
	// Resolver is the layered command and agent resolver. Required.
	Resolver *definitions.Resolver

	// Templates is the search list for /prompt.
	Templates definitions.TemplatePaths

	// Syncer backs /agent-sync. Optional; /agent-sync reports it as unavailable when nil.
	Syncer *agentsync.Syncer

	// ProjectRoot is the directory shown by /status.
	ProjectRoot string

	// Responder answers free-form chat. Defaults to a CannedResponder.
	Responder Responder

	// Logger defaults to log.Default().
	Logger *log.Logger

	// TracerProvider defaults to the global otel provider.
	TracerProvider trace.TracerProvider
}

// Dispatcher routes input lines to built-ins, file-backed commands or chat.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	resolver    *definitions.Resolver
	templates   definitions.TemplatePaths
	syncer      *agentsync.Syncer
	projectRoot string
	responder   Responder
	logger      *log.Logger
	tracer      trace.Tracer
}

// New creates a Dispatcher.
//
// Parameters:
//   - opts: Dispatcher options; Resolver is required
//
// Returns:
//   - *Dispatcher: A new dispatcher
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	responder := opts.Responder
	if responder == nil {
		responder = NewCannedResponder()
	}
	root := opts.ProjectRoot
	if root == "" {
		root, _ = os.Getwd()
	}

	return &Dispatcher{
		resolver:    opts.Resolver,
		templates:   opts.Templates,
		syncer:      opts.Syncer,
		projectRoot: root,
		responder:   responder,
		logger:      logger.WithPrefix("dispatch"),
		tracer:      tp.Tracer(tracerName),
	}
}

// Resolver returns the resolver used for file-backed commands.
func (d *Dispatcher) Resolver() *definitions.Resolver {
	return d.resolver
}

// Dispatch handles one input line.
//
// Parameters:
//   - ctx: Context for the Responder and tracing
//   - line: Raw input text
//   - msgCtx: Opaque context map forwarded to the Responder
//
// Returns:
//   - Result: Always populated; see Result.Err for chat failures
func (d *Dispatcher) Dispatch(ctx context.Context, line string, msgCtx map[string]any) Result {
	inv := Parse(line, msgCtx)
	if inv.IsCommand() {
		return d.Execute(ctx, inv)
	}
	return d.chat(ctx, inv)
}

// Execute runs a command invocation: a built-in if the verb matches one
// exactly, otherwise a file-backed command.
//
// Parameters:
//   - ctx: Context for tracing
//   - inv: A command invocation (see Parse and NewInvocation)
//
// Returns:
//   - Result: The rendered output or a diagnostic
func (d *Dispatcher) Execute(ctx context.Context, inv Invocation) (res Result) {
	ctx, span := d.startCommandSpan(ctx, inv)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked", "verb", inv.Verb, "panic", r)
			res = Result{
				Verb: inv.Verb,
				Args: inv.Args,
				Text: fmt.Sprintf("Failed to execute command: %s", inv.Verb),
			}
		}
		d.endCommandSpan(span, res)
	}()

	if fn, ok := builtins[inv.Verb]; ok {
		d.logger.Debug("built-in", "verb", inv.Verb, "args", inv.Args)
		return Result{
			Text:    fn(d, ctx, inv),
			Verb:    inv.Verb,
			Args:    inv.Args,
			Builtin: true,
		}
	}

	return d.runCommand(inv)
}

// runCommand resolves, loads and renders a file-backed command.
func (d *Dispatcher) runCommand(inv Invocation) Result {
	res := Result{Verb: inv.Verb, Args: inv.Args}
	name := inv.Name()

	ref, err := d.resolver.Resolve(definitions.KindCommand, name)
	if err != nil {
		res.Text = describeMiss(inv.Verb, err)
		d.logger.Debug("command not resolved", "verb", inv.Verb, "err", err)
		return res
	}

	def, err := definitions.Load(ref)
	if err != nil {
		res.Text = fmt.Sprintf("Failed to read command '%s': %v\n\nResolved path: %s", inv.Verb, err, ref.Path)
		d.logger.Warn("command unreadable", "verb", inv.Verb, "path", ref.Path, "err", err)
		return res
	}

	res.Ref = &ref
	res.Text = fmt.Sprintf("**Executing: %s**\n\nArguments: %s\n\n**Command Output:**\n\n%s",
		inv.Verb, joinedOrNone(inv.Args, "None"), template.Render(def.Body, inv.Args))
	d.logger.Debug("command rendered", "verb", inv.Verb, "tier", ref.Tier, "path", ref.Path)
	return res
}

// chat hands a free-form message to the Responder.
func (d *Dispatcher) chat(ctx context.Context, inv Invocation) (res Result) {
	ctx, span := d.tracer.Start(ctx, "dispatch.chat")
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("responder panic: %v", r)}
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			d.logger.Error("chat responder failed", "err", res.Err)
		}
		span.End()
	}()

	reply, err := d.responder.GenerateReply(ctx, inv.Message, inv.Context)
	if err != nil {
		return Result{Err: fmt.Errorf("generate reply: %w", err)}
	}
	return Result{Text: reply}
}

// describeMiss converts a resolution failure to transcript text.
func describeMiss(verb string, err error) string {
	if errors.Is(err, definitions.ErrInvalidName) {
		return fmt.Sprintf("Invalid command name '%s'. Use `/commands` to see available commands.", verb)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Command '%s' not found. Use `/commands` to see available commands.", verb)

	var lookup *definitions.LookupError
	if errors.As(err, &lookup) {
		b.WriteString("\n\nSearched:\n")
		for _, dir := range lookup.Tried {
			fmt.Fprintf(&b, "- %s\n", dir)
		}
		for _, cause := range lookup.Causes {
			fmt.Fprintf(&b, "- unreadable: %v\n", cause)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinedOrNone(args []string, none string) string {
	if len(args) == 0 {
		return none
	}
	return strings.Join(args, " ")
}
