package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"atmoscape.dev/internal/protocol"
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

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	overlaySchema := compile("overlay.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"overlay1",
	  "capabilities":{"max_queue":8}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "client_id":"C000001",
	  "world_id":"world_1",
	  "tick_rate_hz":2,
	  "gas_digest":"deadbeef"
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var overlay any
	_ = json.Unmarshal([]byte(`{
	  "type":"OVERLAY",
	  "protocol_version":"1.0",
	  "tick":42,
	  "grids":[{"grid_id":"station","tiles":[[0,0],[0,1]]}],
	  "damage":[{"grid_id":"station","subject_id":"wall_3","pos":[2,2],"pressure":16000,"delta":0,"damage":1000}],
	  "pressure":[{"grid_id":"station","pos":[1,0],"direction":"E","difference":240.5}]
	}`), &overlay)
	validate(overlaySchema, overlay)
}

// Marshalled messages must themselves satisfy the published schemas.
func TestSchemas_RoundTripOwnTypes(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "overlay.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	msg := protocol.OverlayMsg{
		Type:            protocol.TypeOverlay,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		Grids: []protocol.GridOverlay{
			{GridID: "g1", Tiles: [][2]int{{0, 0}, {3, -1}}},
		},
		Pressure: []protocol.PressureEvent{
			{GridID: "g1", Pos: [2]int{3, -1}, Direction: "W", Difference: 101.3},
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("overlay message does not satisfy schema: %v", err)
	}
}
