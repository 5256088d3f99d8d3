package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		body string
		args []string
		want string
	}{
		{
			name: "positional and whole arguments",
			body: "$1 $2 $ARGS",
			args: []string{"a", "b", "c"},
			want: "a b a b c",
		},
		{
			name: "long whole-arguments placeholder",
			body: "Run with: $ARGUMENTS",
			args: []string{"--fast", "staging"},
			want: "Run with: --fast staging",
		},
		{
			name: "index past argument count is empty",
			body: "[$1][$2][$9]",
			args: []string{"only"},
			want: "[only][][]",
		},
		{
			name: "no arguments",
			body: "Deploying $1 with $ARGUMENTS.",
			args: nil,
			want: "Deploying  with .",
		},
		{
			name: "multi-digit index",
			body: "$10-$1",
			args: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "ten"},
			want: "ten-1",
		},
		{
			name: "zero index is empty",
			body: "x$0y",
			args: []string{"a"},
			want: "xy",
		},
		{
			name: "no double substitution of inserted text",
			body: "$1 / $2",
			args: []string{"$2", "$ARGS"},
			want: "$2 / $ARGS",
		},
		{
			name: "whole arguments containing placeholder text stays literal",
			body: "$ARGUMENTS",
			args: []string{"$1", "x"},
			want: "$1 x",
		},
		{
			name: "dollar without placeholder is untouched",
			body: "costs $ and $USD",
			args: []string{"a"},
			want: "costs $ and $USD",
		},
		{
			name: "no html escaping",
			body: "<b>$1</b>",
			args: []string{"&amp;"},
			want: "<b>&amp;</b>",
		},
		{
			name: "empty body",
			body: "",
			args: []string{"a"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.body, tt.args)
			if got != tt.want {
				t.Errorf("Render(%q, %q) = %q, want %q", tt.body, tt.args, got, tt.want)
			}
		})
	}
}

func TestRender_Deploy(t *testing.T) {
	if got := Render("Deploying $1", []string{"staging"}); got != "Deploying staging" {
		t.Fatalf("Render() = %q, want %q", got, "Deploying staging")
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("$2 then $1, again $2 and $ARGUMENTS")
	want := []string{"$2", "$1", "$ARGUMENTS"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
	}

	if got := Placeholders("plain text"); got != nil {
		t.Errorf("Placeholders(plain) = %v, want nil", got)
	}
}
