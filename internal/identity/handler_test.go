package identity

import (
	"encoding/json"
	"testing"
)

func TestPinRequestDecodesStringsAndNumbers(t *testing.T) {
	cases := []struct {
		raw   string
		phone string
		pin   string
	}{
		{`{"phone":"987654321","pin":"0123"}`, "987654321", "0123"},
		{`{"phone":"987654321","pin":4321}`, "987654321", "4321"},
		{`{"phone":987654321,"pin":null}`, "987654321", ""},
		{`{}`, "", ""},
	}
	for _, tc := range cases {
		var req pinRequest
		if err := json.Unmarshal([]byte(tc.raw), &req); err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if string(req.Phone) != tc.phone || string(req.PIN) != tc.pin {
			t.Fatalf("%s: got phone=%q pin=%q", tc.raw, req.Phone, req.PIN)
		}
	}
}

func TestPinRequestRejectsNonScalars(t *testing.T) {
	for _, raw := range []string{`{"pin":true}`, `{"pin":[1,2,3,4]}`, `{"pin":{"v":1}}`} {
		var req pinRequest
		if err := json.Unmarshal([]byte(raw), &req); err == nil {
			t.Fatalf("%s: expected decode error", raw)
		}
	}
}
