package main

import "testing"

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "port", "log-level", "playback-id", "autoplay"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
	if got := cmd.Flags().Lookup("config").DefValue; got != "config.yaml" {
		t.Errorf("--config default = %q, want config.yaml", got)
	}
}
