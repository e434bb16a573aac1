package event

import (
	"testing"
	"time"
)

var ingestTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizePhaseAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Phase
	}{
		{"canonical pre", `{"phase":"pre","sessionId":"s1","toolName":"Read"}`, PreToolPhase},
		{"hook PreToolUse", `{"hook_event_name":"PreToolUse","session_id":"s1","tool_name":"Read"}`, PreToolPhase},
		{"hook PostToolUse", `{"hook_event_name":"PostToolUse","session_id":"s1","tool_name":"Read"}`, PostToolPhase},
		{"snake post", `{"phase":"post_tool_use","sessionId":"s1","toolName":"Bash"}`, PostToolPhase},
		{"session start", `{"phase":"session_start","sessionId":"s1"}`, SessionStartPhase},
		{"hook SessionStart", `{"hook_event_name":"SessionStart","session_id":"s1"}`, SessionStartPhase},
		{"stop is session end", `{"hook_event_name":"Stop","session_id":"s1"}`, SessionEndPhase},
		{"notification", `{"phase":"notification","sessionId":"s1"}`, NotificationPhase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Normalize([]byte(tt.raw), ingestTime)
			if !ok {
				t.Fatalf("Normalize(%s) dropped, want phase %s", tt.raw, tt.want)
			}
			if got := ev.Kind(); got != tt.want {
				t.Errorf("phase = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalizeDropsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{not json`},
		{"unknown phase", `{"phase":"bogus","sessionId":"s1"}`},
		{"missing phase", `{"sessionId":"s1"}`},
		{"missing session id", `{"phase":"pre","toolName":"Read"}`},
		{"pre without tool name", `{"phase":"pre","sessionId":"s1"}`},
		{"post without tool name", `{"phase":"post","sessionId":"s1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ev, ok := Normalize([]byte(tt.raw), ingestTime); ok {
				t.Errorf("Normalize(%s) = %#v, want drop", tt.raw, ev)
			}
		})
	}
}

func TestNormalizeSourceInference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Source
	}{
		{"explicit source wins", `{"phase":"notification","sessionId":"codex-1","source":"claude"}`, SourceClaude},
		{"codex prefix", `{"phase":"notification","sessionId":"codex-abc123"}`, SourceCodex},
		{"no prefix is claude", `{"phase":"notification","sessionId":"6f1e9a"}`, SourceClaude},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Normalize([]byte(tt.raw), ingestTime)
			if !ok {
				t.Fatal("Normalize dropped valid record")
			}
			if got := ev.EventMeta().Source; got != tt.want {
				t.Errorf("source = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		ev, ok := Normalize([]byte(`{"phase":"notification","sessionId":"s1","timestamp":"2026-03-01T09:30:00Z"}`), ingestTime)
		if !ok {
			t.Fatal("Normalize dropped valid record")
		}
		want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
		if !ev.EventMeta().Time.Equal(want) {
			t.Errorf("time = %s, want %s", ev.EventMeta().Time, want)
		}
	})

	t.Run("epoch millis", func(t *testing.T) {
		ev, ok := Normalize([]byte(`{"phase":"notification","sessionId":"s1","timestamp":1767261600000}`), ingestTime)
		if !ok {
			t.Fatal("Normalize dropped valid record")
		}
		want := time.UnixMilli(1767261600000)
		if !ev.EventMeta().Time.Equal(want) {
			t.Errorf("time = %s, want %s", ev.EventMeta().Time, want)
		}
	})

	t.Run("absent defaults to ingestion time", func(t *testing.T) {
		ev, ok := Normalize([]byte(`{"phase":"notification","sessionId":"s1"}`), ingestTime)
		if !ok {
			t.Fatal("Normalize dropped valid record")
		}
		if !ev.EventMeta().Time.Equal(ingestTime) {
			t.Errorf("time = %s, want ingestion time %s", ev.EventMeta().Time, ingestTime)
		}
	})

	t.Run("garbage defaults to ingestion time", func(t *testing.T) {
		ev, ok := Normalize([]byte(`{"phase":"notification","sessionId":"s1","timestamp":"yesterday"}`), ingestTime)
		if !ok {
			t.Fatal("Normalize dropped valid record")
		}
		if !ev.EventMeta().Time.Equal(ingestTime) {
			t.Errorf("time = %s, want ingestion time %s", ev.EventMeta().Time, ingestTime)
		}
	})
}

func TestNormalizePreToolUseFields(t *testing.T) {
	raw := `{
		"hook_event_name": "PreToolUse",
		"session_id": "s1",
		"tool_use_id": "toolu_01",
		"tool_name": "Edit",
		"tool_input": {"file_path": "/tmp/a.go", "old_string": "x", "new_string": "y"},
		"model": "opus"
	}`
	ev, ok := Normalize([]byte(raw), ingestTime)
	if !ok {
		t.Fatal("Normalize dropped valid record")
	}
	pre, ok := ev.(PreToolUse)
	if !ok {
		t.Fatalf("event type = %T, want PreToolUse", ev)
	}
	if pre.ToolName != "Edit" {
		t.Errorf("ToolName = %q, want %q", pre.ToolName, "Edit")
	}
	if pre.ToolUseID != "toolu_01" {
		t.Errorf("ToolUseID = %q, want %q", pre.ToolUseID, "toolu_01")
	}
	if pre.Model != "opus" {
		t.Errorf("Model = %q, want %q", pre.Model, "opus")
	}
	if got := pre.ToolInput["file_path"]; got != "/tmp/a.go" {
		t.Errorf("ToolInput[file_path] = %v, want /tmp/a.go", got)
	}
}
