package main

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"default", false, "", zapcore.WarnLevel, false},
		{"configured", false, "info", zapcore.InfoLevel, false},
		{"verbose wins", true, "error", zapcore.DebugLevel, false},
		{"bad level", false, "loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := newLogger(tt.verbose, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Error("newLogger() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			if !l.Core().Enabled(tt.want) || (tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1)) {
				t.Errorf("logger level is not %v", tt.want)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"check"}, {"merge"}, {"review"}, {"serve"}, {"version"},
		{"contributor", "new"}, {"contributor", "list"},
		{"pubs", "index"}, {"pubs", "search"}, {"pubs", "list"},
		{"pubs", "get"}, {"pubs", "export"}, {"pubs", "stats"},
		{"config", "show"}, {"config", "init"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %v, %v, %v", path, cmd.Name(), rest, err)
		}
	}
}

func TestMergeThresholdHelp(t *testing.T) {
	f := mergeCmd.Flags().Lookup("threshold")
	if f == nil {
		t.Fatal("merge has no --threshold flag")
	}
	if want := "Mean author, title and venue similarity"; !strings.HasPrefix(f.Usage, want) {
		t.Errorf("--threshold usage = %q, want it to start with %q", f.Usage, want)
	}
}
