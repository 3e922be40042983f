package main

import (
	"bytes"
	"strings"
	"testing"

	"drunc.client/internal/core/domain"
	"github.com/spf13/cobra"
)

func TestQueryFlags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		withAll    bool
		requireOne bool
		wantErr    bool
	}{
		{"empty allowed", nil, false, false, false},
		{"empty refused", nil, true, true, true},
		{"all", []string{"--all"}, true, true, false},
		{"session", []string{"-s", "run1"}, true, true, false},
		{"names", []string{"-n", "a", "--name", "b"}, true, true, false},
		{"bad uuid", []string{"--uuid", "nope"}, true, true, true},
		{"good uuid", []string{"--uuid", "123e4567-e89b-12d3-a456-426614174000"}, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f queryFlags
			cmd := &cobra.Command{Use: "x"}
			f.register(cmd, tt.withAll)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags failed: %v", err)
			}
			_, err := f.query(tt.requireOne)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestQueryFlagsSelectors(t *testing.T) {
	var f queryFlags
	cmd := &cobra.Command{Use: "x"}
	f.register(cmd, true)
	if err := cmd.ParseFlags([]string{"-s", "run1", "-u", "bob", "-n", "a", "-n", "b"}); err != nil {
		t.Fatal(err)
	}
	q, err := f.query(true)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if q.Session != "run1" || q.User != "bob" || len(q.Names) != 2 || q.Names[1] != "b" {
		t.Errorf("Unexpected query %+v", q)
	}
}

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	list := &domain.ProcessInstanceList{Values: []*domain.ProcessInstance{{
		ProcessDescription: domain.ProcessDescription{
			Metadata: domain.ProcessMetadata{Session: "run1", Name: "foo", User: "alice"},
		},
		UUID:       "u-1",
		StatusCode: domain.ProcessRunning,
	}}}
	if err := printList(&buf, list); err != nil {
		t.Fatalf("printList failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header and one row, got %q", buf.String())
	}
	for _, want := range []string{"run1", "foo", "alice", "u-1", "RUNNING"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("Expected %q in row %q", want, lines[1])
		}
	}
}
