package main

import (
	"testing"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "sweep", "migrate", "token"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestSweepCmd_TimeoutFlag(t *testing.T) {
	cmd := newSweepCmd()
	if err := cmd.ParseFlags([]string{"--timeout", "90s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if got := cmd.Flags().Lookup("timeout").Value.String(); got != "1m30s" {
		t.Fatalf("timeout=%q want 1m30s", got)
	}
}
