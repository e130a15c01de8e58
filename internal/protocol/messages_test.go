package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"tilemap/pkg/geom"
)

func TestEnvelope(t *testing.T) {
	msg, err := NewMessage(TypeSetHeight, SetHeightPayload{Cell: Cell{X: 3, Y: -2}, Height: 4})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.ID == "" || msg.Timestamp == 0 {
		t.Errorf("envelope not filled: %+v", msg)
	}

	data, _ := json.Marshal(msg)
	for _, want := range []string{`"type":"set_height"`, `"payload":{"cell":{"x":3,"y":-2},"height":4}`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("%s missing from %s", want, data)
		}
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var p SetHeightPayload
	if err := decoded.ParsePayload(&p); err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Cell.CPos() != (geom.CPos{X: 3, Y: -2}) || p.Height != 4 {
		t.Errorf("payload = %+v", p)
	}
}

func TestReplyKeepsRequestID(t *testing.T) {
	reply, err := NewReply("req-1", TypeClampResult, ClampResultPayload{})
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	if reply.ID != "req-1" || reply.Type != TypeClampResult {
		t.Errorf("reply = %+v", reply)
	}
}

func TestCoordinateConversions(t *testing.T) {
	cells := CellsFrom([]geom.CPos{{X: 1, Y: 2}, {X: -4, Y: 7}})
	if len(cells) != 2 || cells[1] != (Cell{X: -4, Y: 7}) {
		t.Errorf("CellsFrom = %v", cells)
	}
	if got := MapCellFrom(geom.MPos{U: 5, V: 9}).PPos(); got != (geom.PPos{U: 5, V: 9}) {
		t.Errorf("MapCell = %v", got)
	}

	e := &ErrorPayload{Code: ErrCodeNoMapOpen, Message: "open a map first"}
	if e.Error() != "no_map_open: open a map first" {
		t.Errorf("Error = %q", e.Error())
	}
}
