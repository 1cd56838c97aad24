package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scarify.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("unmarshal sample: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile("hello.schema.json"), `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "operator":"Notch",
	  "permission_level":4,
	  "auth":{"token":"s3cret"}
	}`)
	validate(compile("welcome.schema.json"), `{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"7f1c4c52-2f4b-4e4b-9a39-1a8cfc2d7b1e",
	  "operator":"Notch",
	  "online":["Notch","Steve"]
	}`)
	validate(compile("exec.schema.json"), `{
	  "type":"EXEC",
	  "protocol_version":"1.0",
	  "id":"c1",
	  "line":"/scarify distanceOverride set Herobrine 24.5"
	}`)
	validate(compile("result.schema.json"), `{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "id":"c1",
	  "result":1,
	  "feedback":[{"text":"[Scarify]: Herobrine now has a distance override of 24.5","broadcast":true}]
	}`)
	validate(compile("complete.schema.json"), `{
	  "type":"COMPLETE",
	  "protocol_version":"1.0",
	  "id":"c2",
	  "line":"scarify remove He"
	}`)
	validate(compile("completions.schema.json"), `{
	  "type":"COMPLETIONS",
	  "protocol_version":"1.0",
	  "id":"c2",
	  "suggestions":["Herobrine"]
	}`)
	validate(compile("feedback.schema.json"), `{
	  "type":"FEEDBACK",
	  "protocol_version":"1.0",
	  "from":"Notch",
	  "text":"[Scarify]: Made Herobrine scary!"
	}`)
	validate(compile("error.schema.json"), `{
	  "type":"ERROR",
	  "protocol_version":"1.0",
	  "id":"c3",
	  "code":"E_NOT_FOUND",
	  "message":"Herobrine has not been added to Scarify"
	}`)
}

// The Go message types must produce documents the schemas accept.
func TestSchemas_GoMessages(t *testing.T) {
	cases := []struct {
		schema string
		msg    any
	}{
		{"hello.schema.json", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Operator: "Notch", PermissionLevel: 2}},
		{"welcome.schema.json", protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: "s1", Operator: "Notch", Online: []string{}}},
		{"exec.schema.json", protocol.ExecMsg{Type: protocol.TypeExec, ProtocolVersion: protocol.Version, ID: "1", Line: "scarify listAddedPlayers"}},
		{"result.schema.json", protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: "1", Result: 1, Feedback: []protocol.FeedbackLine{{Text: "ok"}}}},
		{"result.schema.json", protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ID: "1"}},
		{"complete.schema.json", protocol.CompleteMsg{Type: protocol.TypeComplete, ProtocolVersion: protocol.Version, ID: "2", Line: "sc"}},
		{"completions.schema.json", protocol.CompletionsMsg{Type: protocol.TypeCompletions, ProtocolVersion: protocol.Version, ID: "2"}},
		{"feedback.schema.json", protocol.FeedbackMsg{Type: protocol.TypeFeedback, ProtocolVersion: protocol.Version, From: "Notch", Text: "hi"}},
		{"error.schema.json", protocol.NewError("3", protocol.ErrConflict, "dup")},
	}
	for _, tc := range cases {
		s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", tc.schema))
		if err != nil {
			t.Fatalf("compile %s: %v", tc.schema, err)
		}
		b, err := json.Marshal(tc.msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("%s rejected %s: %v", tc.schema, b, err)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	base, err := protocol.DecodeBase([]byte(`{"type":"EXEC","protocol_version":"1.0","line":"x"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if base.Type != protocol.TypeExec || base.ProtocolVersion != protocol.Version {
		t.Fatalf("base=%+v", base)
	}
	if _, err := protocol.DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
