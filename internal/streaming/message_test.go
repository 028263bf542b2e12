package streaming

import "testing"

func TestEncodeDecodeTask(t *testing.T) {
	task := Task{
		Type:     TaskTypeTrack,
		ChainID:  1,
		TraceID:  "deadbeef",
		TxHash:   "0xabc",
		Hook:     "notify",
		HookArgs: map[string]string{"tenant": "a"},
	}
	payload, err := Encode(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != TaskTypeTrack || decoded.ChainID != 1 || decoded.TxHash != "0xabc" {
		t.Errorf("identity lost: %+v", decoded)
	}
	if decoded.Hook != "notify" || decoded.HookArgs["tenant"] != "a" {
		t.Errorf("hook routing lost: %+v", decoded)
	}
}

func TestEncodeRejectsIncompleteTask(t *testing.T) {
	cases := []Task{
		{ChainID: 1, TxHash: "0xabc"},
		{Type: TaskTypeTrack, TxHash: "0xabc"},
		{Type: TaskTypeTrack, ChainID: 1},
	}
	for i, task := range cases {
		if _, err := Encode(task); err == nil {
			t.Errorf("case %d: expected encode error", i)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Error("expected decode error for invalid json")
	}
	if _, err := Decode([]byte(`{"type":"track"}`)); err == nil {
		t.Error("expected decode error for missing fields")
	}
}
