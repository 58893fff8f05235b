package link

import (
	"encoding/binary"
	"fmt"
)

// Wire encoding for RESOURCE_ADV / RESOURCE_REQ payloads. The external
// Resource engine (§1 scope) would define its own richer framing; Link
// only needs enough to advertise, accept/reject, and forward the
// single-shot payload a Request/Response hands it (see send.go).

const (
	advFlagIsResponse = 1 << 0
)

func encodeAdvertisement(adv *ResourceAdvertisement) ([]byte, error) {
	if len(adv.Hash) != 16 {
		return nil, fmt.Errorf("link: advertisement hash must be 16 bytes")
	}
	var flags byte
	if adv.IsResponse {
		flags |= advFlagIsResponse
	}
	buf := make([]byte, 16+8+1)
	copy(buf[0:16], adv.Hash)
	binary.BigEndian.PutUint64(buf[16:24], adv.Size)
	buf[24] = flags
	if adv.IsResponse {
		buf = append(buf, adv.RequestID...)
	}
	return buf, nil
}

func decodeAdvertisement(payload []byte) (*ResourceAdvertisement, error) {
	if len(payload) < 25 {
		return nil, fmt.Errorf("link: advertisement payload too short")
	}
	adv := &ResourceAdvertisement{
		Hash: append([]byte(nil), payload[0:16]...),
		Size: binary.BigEndian.Uint64(payload[16:24]),
	}
	flags := payload[24]
	adv.IsResponse = flags&advFlagIsResponse != 0
	if adv.IsResponse {
		if len(payload) < 25+16 {
			return nil, fmt.Errorf("link: response advertisement missing request id")
		}
		adv.RequestID = append([]byte(nil), payload[25:41]...)
	}
	return adv, nil
}

func encodeResourceReq(hash, data []byte) []byte {
	buf := make([]byte, 16+len(data))
	copy(buf[0:16], hash)
	copy(buf[16:], data)
	return buf
}

func decodeResourceReq(payload []byte) (hash, data []byte, err error) {
	if len(payload) < 16 {
		return nil, nil, fmt.Errorf("link: resource req payload too short")
	}
	return payload[0:16], payload[16:], nil
}
