package h264

import jsoniter "github.com/json-iterator/go"

// SEIPayload is one supplemental enhancement information message from a SEI
// NALU body (H.264 §7.3.2.3.1): a payload type tag and its raw bytes.
type SEIPayload struct {
	Type    uint32
	Payload []byte
}

// seiTimestampPayloadType is the payload_type the teacher's ecosystem uses
// to carry a JSON-encoded host timestamp in-band (vendor SEI convention, not
// part of the base standard); DecodeTimestampSEI decodes it.
const seiTimestampPayloadType = 242

// SEITimestamp is the structure recovered from a payloadType==242 SEI
// message via json-iterator.
type SEITimestamp struct {
	UnixNano int64 `json:"unix_nano"`
}

// ParseSEIPayloads splits a SEI NALU's RBSP body (already emulation-
// prevention-stripped) into its component payloads per the payload_type/
// payload_size byte-extension syntax.
func ParseSEIPayloads(body []byte) []SEIPayload {
	var out []SEIPayload
	i := 0
	for i < len(body) {
		payloadType := uint32(0)
		for i < len(body) && body[i] == 0xFF {
			payloadType += 255
			i++
		}
		if i >= len(body) {
			break
		}
		payloadType += uint32(body[i])
		i++

		payloadSize := 0
		for i < len(body) && body[i] == 0xFF {
			payloadSize += 255
			i++
		}
		if i >= len(body) {
			break
		}
		payloadSize += int(body[i])
		i++

		if i+payloadSize > len(body) {
			payloadSize = len(body) - i
		}
		out = append(out, SEIPayload{Type: payloadType, Payload: body[i : i+payloadSize]})
		i += payloadSize
	}
	return out
}

// DecodeTimestampSEI decodes a payloadType==242 message as a JSON
// SEITimestamp, returning ok=false for any other payload type or malformed
// JSON.
func DecodeTimestampSEI(p SEIPayload) (SEITimestamp, bool) {
	if p.Type != seiTimestampPayloadType {
		return SEITimestamp{}, false
	}
	var ts SEITimestamp
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(p.Payload, &ts); err != nil {
		return SEITimestamp{}, false
	}
	return ts, true
}
