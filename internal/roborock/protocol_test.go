package roborock

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func TestFrameRoundTrip(t *testing.T) {
	localKey := "9Ahb3Dv2Ndy8Jk5w"
	msg := Message{
		Seq:       123456,
		Random:    54321,
		Timestamp: 1735689600,
		Protocol:  ProtocolGeneralReq,
		Payload:   []byte(`{"dps":{"101":"{\"method\":\"get_status\"}"}}`),
	}

	frame, err := encodeFrame(msg, localKey)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	decoded, err := decodeFrame(frame, localKey)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if decoded.Seq != msg.Seq || decoded.Random != msg.Random || decoded.Timestamp != msg.Timestamp {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if decoded.Protocol != ProtocolGeneralReq {
		t.Fatalf("protocol mismatch: %d", decoded.Protocol)
	}
	if !bytes.Equal(decoded.Payload, msg.Payload) {
		t.Fatalf("payload mismatch: %q", decoded.Payload)
	}
}

func TestFrameRejectsCorruption(t *testing.T) {
	localKey := "9Ahb3Dv2Ndy8Jk5w"
	frame, err := encodeFrame(Message{Protocol: ProtocolGeneralReq, Payload: []byte("{}")}, localKey)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}

	corrupted := append([]byte(nil), frame...)
	corrupted[7] ^= 0xff
	if _, err := decodeFrame(corrupted, localKey); err == nil {
		t.Fatal("expected checksum error for corrupted frame")
	}

	if _, err := decodeFrame(frame[:10], localKey); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestFrameWrongKeyFailsDecrypt(t *testing.T) {
	frame, err := encodeFrame(Message{Protocol: ProtocolGeneralReq, Payload: []byte(`{"t":1}`)}, "keyAkeyAkeyAkeyA")
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	if _, err := decodeFrame(frame, "keyBkeyBkeyBkeyB"); err == nil {
		t.Fatal("expected decrypt failure with wrong local key")
	}
}

func TestEncodeTimestamp(t *testing.T) {
	// 0x12345678: digit order 5,6,3,7,1,2,0,4 over "12345678".
	got := string(encodeTimestamp(0x12345678))
	if got != "67482315" {
		t.Fatalf("encodeTimestamp = %q", got)
	}
}

func TestFrameRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		localKey := rapid.StringMatching(`[a-zA-Z0-9]{16}`).Draw(t, "localKey")
		payload := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "payload")
		msg := Message{
			Seq:       rapid.Uint32Range(1, 1<<30).Draw(t, "seq"),
			Random:    rapid.Uint32Range(1, 1<<30).Draw(t, "random"),
			Timestamp: rapid.Uint32Range(1, 1<<31).Draw(t, "timestamp"),
			Protocol:  ProtocolRpcRequest,
			Payload:   payload,
		}
		frame, err := encodeFrame(msg, localKey)
		if err != nil {
			t.Fatalf("encodeFrame: %v", err)
		}
		decoded, err := decodeFrame(frame, localKey)
		if err != nil {
			t.Fatalf("decodeFrame: %v", err)
		}
		if !bytes.Equal(decoded.Payload, payload) {
			t.Fatalf("payload mismatch")
		}
	})
}
