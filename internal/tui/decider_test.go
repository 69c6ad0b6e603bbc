package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/lifecycle"
)

func testConfig(t *testing.T) *config.EnvironmentConfig {
	t.Helper()
	cfg, err := config.Resolve("clinic", "dev", "localhost")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return cfg
}

func accessibleDecider(input string) (*PromptDecider, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPromptDecider(strings.NewReader(input), &out).WithAccessible(true), &out
}

func TestPromptDecider_ExistingEnvironment(t *testing.T) {
	tests := []struct {
		input string
		want  lifecycle.Choice
	}{
		{"1\n", lifecycle.ChoiceUpdateInPlace},
		{"2\n", lifecycle.ChoiceReconcile},
		{"3\n", lifecycle.ChoiceAbort},
		{"\n", lifecycle.ChoiceAbort},
		{"9\n2\n", lifecycle.ChoiceReconcile},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			d, out := accessibleDecider(tt.input)
			got, err := d.ExistingEnvironment(context.Background(), testConfig(t), "/srv/environments/clinic-dev")
			if err != nil {
				t.Fatalf("ExistingEnvironment() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExistingEnvironment() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(out.String(), "clinic-dev already exists") {
				t.Errorf("prompt output missing title:\n%s", out.String())
			}
		})
	}
}

func TestPromptDecider_Confirmations(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			d, _ := accessibleDecider(tt.input)
			got, err := d.ContinueAfterRemovalFailure(context.Background(), "/srv/environments/clinic-dev", errors.New("device busy"))
			if err != nil {
				t.Fatalf("ContinueAfterRemovalFailure() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ContinueAfterRemovalFailure() = %v, want %v", got, tt.want)
			}

			d, out := accessibleDecider(tt.input)
			got, err = d.RemoveVolumes(context.Background(), testConfig(t), []string{"clinic-dev-openemr_db"})
			if err != nil {
				t.Fatalf("RemoveVolumes() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RemoveVolumes() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Remove 1 volumes of clinic-dev?") {
				t.Errorf("prompt output missing title:\n%s", out.String())
			}
		})
	}
}

func TestNewPromptDecider_NonTerminalIsAccessible(t *testing.T) {
	d := NewPromptDecider(strings.NewReader(""), &bytes.Buffer{})
	if !d.accessible {
		t.Error("decider writing to a buffer should use accessible prompts")
	}
}
