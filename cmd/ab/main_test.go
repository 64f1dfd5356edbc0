package main

import (
	"bytes"
	"strings"
	"testing"
)

func runForOutput(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return buf.String()
}

func TestRootCmd_ListsSubcommands(t *testing.T) {
	out := runForOutput(t, "--help")
	for _, sub := range []string{"db", "project", "issue", "sprint", "board", "serve", "jobs", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out := runForOutput(t, "version")
	if !strings.Contains(out, "ab dev") {
		t.Errorf("version output = %q, want to contain 'ab dev'", out)
	}
}

func TestExecute_ReturnsNonzeroOnError(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"no-such-command"})
	if code := execute(cmd); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
