package roborock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math/rand"
	"time"
)

const protocolVersion = "1.0"

// MessageProtocol is the on-wire protocol discriminator of a frame.
type MessageProtocol uint16

const (
	ProtocolGeneralReq  MessageProtocol = 4
	ProtocolGeneralResp MessageProtocol = 5
	ProtocolRpcRequest  MessageProtocol = 101
	ProtocolRpcResponse MessageProtocol = 102
)

// Message is one decoded broker frame. Payload holds the decrypted bytes.
type Message struct {
	Seq       uint32
	Random    uint32
	Timestamp uint32
	Protocol  MessageProtocol
	Payload   []byte
}

const frameHeaderLen = 3 + 4 + 4 + 4 + 2 + 2

// encodeFrame serializes and encrypts msg as a "1.0" broker frame:
// version, seq, random, timestamp, protocol, payload length, payload,
// then a CRC32 over everything before it. Cloud frames carry no outer
// length prefix, each MQTT publish is exactly one frame.
func encodeFrame(msg Message, localKey string) ([]byte, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = nowTimestamp()
	}
	if msg.Seq == 0 {
		msg.Seq = uint32(nextInt(100000, 999999))
	}
	if msg.Random == 0 {
		msg.Random = uint32(nextInt(10000, 99999))
	}

	var payload []byte
	if len(msg.Payload) > 0 {
		var err error
		payload, err = aesEcbEncrypt(msg.Payload, payloadKey(localKey, msg.Timestamp))
		if err != nil {
			return nil, err
		}
	}

	buf := &bytes.Buffer{}
	buf.WriteString(protocolVersion)
	_ = binary.Write(buf, binary.BigEndian, msg.Seq)
	_ = binary.Write(buf, binary.BigEndian, msg.Random)
	_ = binary.Write(buf, binary.BigEndian, msg.Timestamp)
	_ = binary.Write(buf, binary.BigEndian, uint16(msg.Protocol))
	_ = binary.Write(buf, binary.BigEndian, uint16(len(payload)))
	buf.Write(payload)
	_ = binary.Write(buf, binary.BigEndian, crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes(), nil
}

// decodeFrame parses and decrypts one broker frame.
func decodeFrame(frame []byte, localKey string) (Message, error) {
	if len(frame) < frameHeaderLen+4 {
		return Message{}, errors.New("frame too short")
	}
	if string(frame[:3]) != protocolVersion {
		return Message{}, fmt.Errorf("unsupported frame version %q", frame[:3])
	}
	checksumOffset := len(frame) - 4
	checksum := binary.BigEndian.Uint32(frame[checksumOffset:])
	if checksum != 0 && crc32.ChecksumIEEE(frame[:checksumOffset]) != checksum {
		return Message{}, errors.New("checksum mismatch")
	}

	msg := Message{
		Seq:       binary.BigEndian.Uint32(frame[3:7]),
		Random:    binary.BigEndian.Uint32(frame[7:11]),
		Timestamp: binary.BigEndian.Uint32(frame[11:15]),
		Protocol:  MessageProtocol(binary.BigEndian.Uint16(frame[15:17])),
	}
	payloadLen := int(binary.BigEndian.Uint16(frame[17:19]))
	if frameHeaderLen+payloadLen != checksumOffset {
		return Message{}, fmt.Errorf("payload length %d does not match frame", payloadLen)
	}
	if payloadLen > 0 {
		payload, err := aesEcbDecrypt(frame[frameHeaderLen:checksumOffset], payloadKey(localKey, msg.Timestamp))
		if err != nil {
			return Message{}, fmt.Errorf("decrypt payload: %w", err)
		}
		msg.Payload = payload
	}
	return msg, nil
}

// payloadKey derives the per-frame AES key from the device local key and the
// frame timestamp.
func payloadKey(localKey string, timestamp uint32) []byte {
	input := append(append(encodeTimestamp(timestamp), []byte(localKey)...), []byte(roborockSalt)...)
	return md5Bytes(input)
}

// encodeTimestamp shuffles the hex digits of ts into the fixed order the
// device firmware uses for key derivation.
func encodeTimestamp(ts uint32) []byte {
	hex := fmt.Sprintf("%08x", ts)
	order := []int{5, 6, 3, 7, 1, 2, 0, 4}
	out := make([]byte, 8)
	for i, idx := range order {
		out[i] = hex[idx]
	}
	return out
}

func nowTimestamp() uint32 {
	return uint32(time.Now().Unix())
}

func nextInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}
