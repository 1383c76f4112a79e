package main

import (
	"fmt"
	"os"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/mvickers/dossier/internal/errors"
)

func TestNewCLIApp_CommandWiring(t *testing.T) {
	app := newCLIApp(nil, nil, nil)

	want := []string{
		"build", "preview", "fetch", "list", "latest", "receipt", "verify",
		"budget", "ticket", "artifact", "red", "manifest", "serve",
	}
	byName := make(map[string]*cli.Command, len(app.Commands))
	for _, cmd := range app.Commands {
		byName[cmd.Name] = cmd
	}
	for _, name := range want {
		if byName[name] == nil {
			t.Errorf("command %s not registered", name)
		}
	}
	if len(app.Commands) != len(want) {
		t.Errorf("len(Commands) = %d, want %d", len(app.Commands), len(want))
	}

	for _, group := range []string{"ticket", "artifact", "red", "manifest"} {
		cmd := byName[group]
		if cmd == nil {
			continue
		}
		if len(cmd.Subcommands) != 1 || cmd.Subcommands[0].Name != "add" {
			t.Errorf("%s subcommands = %v, want [add]", group, cmd.Subcommands)
		}
	}
}

func TestIsCLIMode(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"dossier"}, false},
		{[]string{"dossier", "build"}, true},
		{[]string{"dossier", "serve"}, true},
		{[]string{"dossier", "--help"}, true},
		{[]string{"dossier", "-v"}, true},
		{[]string{"dossier", "bogus"}, false},
	}
	for _, tt := range tests {
		os.Args = tt.args
		if got := isCLIMode(); got != tt.want {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"dossier", "help"}
	if !isHelpOrVersion() {
		t.Error("help subcommand not recognized")
	}
	os.Args = []string{"dossier", "build"}
	if isHelpOrVersion() {
		t.Error("build misread as help")
	}
	os.Args = []string{"dossier"}
	if isHelpOrVersion() {
		t.Error("no args misread as help")
	}
}

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b,", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := splitIDs(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitIDs(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitIDs(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestOutputError(t *testing.T) {
	err := outputError(errors.NewUnknownRole("intern-agent"))
	exitErr, ok := err.(cli.ExitCoder)
	if !ok {
		t.Fatalf("outputError returned %T, want an ExitCoder", err)
	}
	if exitErr.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", exitErr.ExitCode())
	}
	if got := exitErr.Error(); got != `[UNKNOWN_ROLE] unknown role: "intern-agent"` {
		t.Errorf("message = %q", got)
	}

	plain := outputError(fmt.Errorf("boom"))
	if plain.(cli.ExitCoder).Error() != "boom" {
		t.Errorf("plain message = %q", plain.Error())
	}
}
