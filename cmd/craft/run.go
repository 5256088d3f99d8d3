package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/dispatch"
	"github.com/whichguy/claude-craft/internal/ui"
)

// runOutput is the --json form of a dispatch result.
type runOutput struct {
	Text    string   `json:"text"`
	Verb    string   `json:"verb,omitempty"`
	Args    []string `json:"args"`
	Builtin bool     `json:"builtin"`
	Source  string   `json:"source,omitempty"`
	Path    string   `json:"path,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// runCmd dispatches one line without a server.
var runCmd = &cobra.Command{
	Use:   "run <line...>",
	Short: "Dispatch one line and print the result",
	Long: `Dispatch a single input line exactly as the console would and print the
rendered output. Arguments are joined with spaces.

Use -- before a line whose arguments look like flags.

EXAMPLES:
  craft run /deploy staging
  craft run /prompt review src/main.go
  craft run /commands
  craft run --json -- /lint --fix`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("json", false, "Output the result as JSON")
}

// runRun dispatches the joined arguments.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: The words of the input line
//
// Returns:
//   - error: Config errors, or the chat responder's failure
func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	res := newDispatcher(cfg).Dispatch(cmd.Context(), strings.Join(args, " "), nil)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		data, err := json.MarshalIndent(toRunOutput(res), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		ui.PrintPlain(string(data))
	} else {
		ui.PrintPlain(res.Text)
	}
	return res.Err
}

func toRunOutput(res dispatch.Result) runOutput {
	out := runOutput{
		Text:    res.Text,
		Verb:    res.Verb,
		Args:    res.Args,
		Builtin: res.Builtin,
	}
	if out.Args == nil {
		out.Args = []string{}
	}
	if res.Ref != nil {
		out.Source = string(res.Ref.Tier)
		out.Path = res.Ref.Path
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
