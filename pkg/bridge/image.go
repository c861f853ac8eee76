package bridge

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/gif"
	"strings"

	// Register decoders for the formats emoji payloads arrive in.
	_ "image/jpeg"
	_ "image/png"
)

// decodePayload decodes a base64 file payload, tolerating the "base64://"
// prefix the wire format uses.
func decodePayload(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "base64://")
	return base64.StdEncoding.DecodeString(s)
}

func isGIF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

// toGIF re-encodes a PNG or JPEG image as a single-frame GIF, the animated
// format the platform expects for emoji attachments.
func toGIF(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
