package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestProgressEvent(t *testing.T) {
	t.Run("DecodeProgressEvent", func(t *testing.T) {
		body := `{"runId":"r1","status":"RUNNING","currentStep":3,"totalSteps":10,"percentage":30.0,` +
			`"message":"Processing question 3 of 10: q","startTime":"2025-01-02 03:04:05","estimatedTimeRemaining":42}`

		ev, err := DecodeProgressEvent([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if ev.RunID != "r1" || ev.Status != StatusRunning {
			t.Errorf("unexpected identity fields: %+v", ev)
		}
		if ev.CurrentStep != 3 || ev.TotalSteps != 10 {
			t.Errorf("expected 3/10, got %d/%d", ev.CurrentStep, ev.TotalSteps)
		}
		if ev.EstimatedTimeRemaining == nil || *ev.EstimatedTimeRemaining != 42 {
			t.Errorf("expected eta 42, got %v", ev.EstimatedTimeRemaining)
		}
		if ev.StartTime == nil || ev.StartTime.Year() != 2025 || ev.StartTime.Second() != 5 {
			t.Errorf("unexpected start time %v", ev.StartTime)
		}
	})

	t.Run("accepts estimatedTimeRemainingSeconds", func(t *testing.T) {
		ev, err := DecodeProgressEvent([]byte(`{"runId":"r1","estimatedTimeRemainingSeconds":75.9}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ev.EstimatedTimeRemaining == nil || *ev.EstimatedTimeRemaining != 75 {
			t.Errorf("expected eta 75, got %v", ev.EstimatedTimeRemaining)
		}
	})

	t.Run("null eta stays nil", func(t *testing.T) {
		ev, err := DecodeProgressEvent([]byte(`{"runId":"r1","estimatedTimeRemaining":null}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ev.EstimatedTimeRemaining != nil {
			t.Errorf("expected nil eta, got %d", *ev.EstimatedTimeRemaining)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		if _, err := DecodeProgressEvent([]byte("not json")); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		ev := ProgressEvent{
			RunID:      "r2",
			Status:     StatusCompleted,
			Percentage: 100,
			StartTime:  NewTimestamp(time.Date(2025, 5, 6, 7, 8, 9, 500, time.Local)),
		}

		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s := string(data)
		if !strings.Contains(s, `"startTime":"2025-05-06 07:08:09"`) {
			t.Errorf("unexpected startTime encoding: %s", s)
		}
		if !strings.Contains(s, `"estimatedTimeRemaining":null`) {
			t.Errorf("expected null eta: %s", s)
		}
		if strings.Contains(s, "lastUpdate") {
			t.Errorf("nil lastUpdate should be omitted: %s", s)
		}
	})

	t.Run("Clone", func(t *testing.T) {
		ev := ProgressEvent{RunID: "r", EstimatedTimeRemaining: Seconds(5)}
		c := ev.Clone()
		*c.EstimatedTimeRemaining = 9
		if *ev.EstimatedTimeRemaining != 5 {
			t.Error("clone shares eta pointer")
		}
	})

	t.Run("Summary", func(t *testing.T) {
		ev := ProgressEvent{RunID: "r", Status: StatusRunning, Percentage: 50, CurrentStep: 1, TotalSteps: 2, Message: "half"}
		if got, want := ev.Summary(), "r RUNNING 50% (1/2) - half"; got != want {
			t.Errorf("Summary() = %q, want %q", got, want)
		}
	})
}

func TestStatus(t *testing.T) {
	tc := []struct {
		status   Status
		terminal bool
	}{
		{StatusStarting, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tc {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestIsTokenError(t *testing.T) {
	tc := []struct {
		name   string
		status Status
		msg    string
		want   bool
	}{
		{"token expired", StatusFailed, "Token has EXPIRED", true},
		{"invalid token", StatusFailed, "invalid token supplied", true},
		{"http 401", StatusFailed, "backend returned 401", true},
		{"unauthorized", StatusFailed, "Unauthorized request", true},
		{"lock marker", StatusFailed, "🔐 Authentication token has expired", true},
		{"mis-decoded marker", StatusFailed, "üîê please log in", true},
		{"token alone", StatusFailed, "token refreshed", false},
		{"generic failure", StatusFailed, "model crashed", false},
		{"running with token text", StatusRunning, "token expired", false},
		{"completed", StatusCompleted, "401", false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := IsTokenError(ProgressEvent{Status: tt.status, Message: tt.msg})
			if got != tt.want {
				t.Errorf("IsTokenError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tc := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"null", false},
		{"false", false},
		{`""`, false},
		{"0", false},
		{"0.0", false},
		{"true", true},
		{"1", true},
		{`"yes"`, true},
		{"{}", true},
	}

	for _, tt := range tc {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Truthy(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("Truthy(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestInstructions(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		got := Instructions{"first", "second"}.String()
		want := "To refresh your token:\n1. first\n2. second"
		if got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})

	t.Run("decodes numbered string", func(t *testing.T) {
		var body ErrorBody
		raw := `{"type":"TOKEN_EXPIRED","instructions":"To refresh your token:\n1. Open the app\n2. Try again"}`
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !body.IsTokenExpired() {
			t.Error("expected token expired body")
		}
		if len(body.Instructions) != 2 || body.Instructions[0] != "Open the app" || body.Instructions[1] != "Try again" {
			t.Errorf("unexpected instructions %q", body.Instructions)
		}
	})

	t.Run("decodes list", func(t *testing.T) {
		var in Instructions
		if err := json.Unmarshal([]byte(`["a","b"]`), &in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(in) != 2 {
			t.Errorf("expected 2 steps, got %d", len(in))
		}
	})

	t.Run("round trip through wire form", func(t *testing.T) {
		data, err := json.Marshal(ErrorBody{Instructions: DefaultTokenInstructions})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var back ErrorBody
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(back.Instructions) != len(DefaultTokenInstructions) {
			t.Errorf("expected %d steps, got %d", len(DefaultTokenInstructions), len(back.Instructions))
		}
	})
}
