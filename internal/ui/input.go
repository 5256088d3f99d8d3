package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

var in io.Reader = os.Stdin

// SetInput replaces the prompt input source.
func SetInput(r io.Reader) {
	in = r
}

// Prompt displays a prompt and reads one line.
//
// Parameters:
//   - message: The prompt message to display
//
// Returns:
//   - string: The trimmed input
//   - error: Any read error
func Prompt(message string) (string, error) {
	fmt.Fprintf(out, "%s ", InfoStyle.Render(message))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// PromptConfirm displays a yes/no confirmation prompt.
//
// Parameters:
//   - message: The prompt message to display
//   - defaultYes: The answer for an empty line
//
// Returns:
//   - bool: True if the user confirmed
//   - error: Any read error
func PromptConfirm(message string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	input, err := Prompt(fmt.Sprintf("%s %s", message, suffix))
	if err != nil {
		return false, err
	}

	input = strings.ToLower(input)
	if input == "" {
		return defaultYes, nil
	}
	return input == "y" || input == "yes", nil
}
