package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/whichguy/claude-craft/internal/definitions"
)

// DefinitionInfo describes one definition file.
type DefinitionInfo struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Shadowed    bool   `json:"shadowed"`
}

// ListInput defines the input parameters for list_commands and list_agents.
type ListInput struct {
	Source string `json:"source,omitempty" jsonschema:"Only list definitions from this tier: project, user or shared"`
}

// ListOutput defines the output for list_commands and list_agents.
type ListOutput struct {
	Definitions []DefinitionInfo `json:"definitions"`
	Searched    []string         `json:"searched"`
	Warning     string           `json:"warning,omitempty"`
}

func (s *Server) handleListCommands(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	return s.list(definitions.KindCommand, input)
}

func (s *Server) handleListAgents(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	return s.list(definitions.KindAgent, input)
}

func (s *Server) list(kind definitions.Kind, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	resolver := s.dispatcher.Resolver()
	refs, err := resolver.ListAll(kind)

	out := ListOutput{
		Definitions: []DefinitionInfo{},
		Searched:    resolver.SearchDirs(kind),
	}
	if err != nil {
		out.Warning = err.Error()
	}

	// The first ref seen for a name is the one Resolve returns.
	winner := make(map[string]definitions.Tier)
	for _, ref := range refs {
		if _, ok := winner[ref.Name]; !ok {
			winner[ref.Name] = ref.Tier
		}
		if input.Source != "" && string(ref.Tier) != input.Source {
			continue
		}
		out.Definitions = append(out.Definitions, DefinitionInfo{
			Name:        ref.Name,
			Source:      string(ref.Tier),
			Path:        ref.Path,
			Description: definitions.Describe(ref),
			Shadowed:    winner[ref.Name] != ref.Tier,
		})
	}
	return nil, out, nil
}

// ResolveInput defines the input parameters for the resolve_command tool.
type ResolveInput struct {
	Name string `json:"name" jsonschema:"Logical name without the leading slash or file extension"`
	Kind string `json:"kind,omitempty" jsonschema:"command (default) or agent"`
}

// ResolveOutput defines the output for the resolve_command tool.
type ResolveOutput struct {
	Found   bool     `json:"found"`
	Name    string   `json:"name"`
	Source  string   `json:"source,omitempty"`
	Path    string   `json:"path,omitempty"`
	Tried   []string `json:"tried,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (s *Server) handleResolve(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, ResolveOutput, error) {
	kind := definitions.KindCommand
	switch input.Kind {
	case "", "command":
	case "agent":
		kind = definitions.KindAgent
	default:
		return nil, ResolveOutput{}, fmt.Errorf("unknown kind %q: use command or agent", input.Kind)
	}

	out := ResolveOutput{Name: input.Name}
	ref, err := s.dispatcher.Resolver().Resolve(kind, input.Name)
	if err != nil {
		var miss *definitions.LookupError
		switch {
		case errors.As(err, &miss):
			out.Tried = miss.Tried
			out.Message = err.Error()
		case errors.Is(err, definitions.ErrInvalidName):
			out.Message = err.Error()
		default:
			return nil, ResolveOutput{}, err
		}
		return nil, out, nil
	}

	out.Found = true
	out.Source = string(ref.Tier)
	out.Path = ref.Path
	return nil, out, nil
}

// RunCommandInput defines the input parameters for the run_command tool.
type RunCommandInput struct {
	Line string `json:"line" jsonschema:"The console line, e.g. '/deploy staging'. A line without a leading slash is sent as chat."`
}

// RunCommandOutput defines the output for the run_command tool.
type RunCommandOutput struct {
	Text    string `json:"text"`
	Verb    string `json:"verb,omitempty"`
	Builtin bool   `json:"builtin"`
	Source  string `json:"source,omitempty"`
	Path    string `json:"path,omitempty"`
}

func (s *Server) handleRunCommand(ctx context.Context, req *mcp.CallToolRequest, input RunCommandInput) (*mcp.CallToolResult, RunCommandOutput, error) {
	if input.Line == "" {
		return nil, RunCommandOutput{}, fmt.Errorf("line is required")
	}

	res := s.dispatcher.Dispatch(ctx, input.Line, nil)
	if res.Err != nil {
		return nil, RunCommandOutput{}, res.Err
	}

	out := RunCommandOutput{Text: res.Text, Verb: res.Verb, Builtin: res.Builtin}
	if res.Ref != nil {
		out.Source = string(res.Ref.Tier)
		out.Path = res.Ref.Path
	}
	return nil, out, nil
}
