// Package qr is the block codec: it round-trips raw block bytes through a QR
// code image. The QR payload evolved from bare base64 (version-1 volumes) to
// a JSON envelope carrying the block id; Decode accepts both so images
// written by older encoders stay readable.
package qr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"

	"github.com/weberc2/qrfs/pkg/types"
)

const (
	NoCodeDetectedErr   types.ConstError = "no QR code detected in image"
	MalformedPayloadErr types.ConstError = "QR payload is neither JSON envelope nor base64"

	// imageSize is the rendered edge length in pixels. Fixed so that every
	// persisted block unit is the same physical size regardless of content.
	imageSize = 600
)

// envelope is the current self-describing payload format.
type envelope struct {
	BlockID types.Block `json:"block_id"`
	Data    string      `json:"data"`
}

// Encode renders raw block bytes as a PNG-encoded QR image. The payload is
// the JSON envelope form: `{"block_id": N, "data": "<base64>"}`.
func Encode(id types.Block, data []byte) ([]byte, error) {
	payload, err := json.Marshal(&envelope{
		BlockID: id,
		Data:    base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding block `%d`: %w", id, err)
	}
	png, err := qrgen.Encode(string(payload), qrgen.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("encoding block `%d`: rendering QR: %w", id, err)
	}
	return png, nil
}

// Decode detects and decodes the QR code in a PNG image and unwraps its
// payload back to raw block bytes.
func Decode(png []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("decoding block image: %w", err)
	}
	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("decoding block image: %w", err)
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bitmap, nil)
	if err != nil {
		return nil, fmt.Errorf(
			"decoding block image: %v: %w",
			err,
			NoCodeDetectedErr,
		)
	}
	data, err := DecodePayload(result.GetText())
	if err != nil {
		return nil, fmt.Errorf("decoding block image: %w", err)
	}
	return data, nil
}

// DecodePayload unwraps a QR text payload: the JSON envelope first, then bare
// standard base64, then the URL-safe base64 variant some phone scanners
// substitute. The upload companion feeds scanned payloads through this too.
func DecodePayload(text string) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err == nil && env.Data != "" {
		data, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			return nil, fmt.Errorf(
				"decoding payload envelope for block `%d`: %w",
				env.BlockID,
				MalformedPayloadErr,
			)
		}
		return data, nil
	}
	if data, err := base64.StdEncoding.DecodeString(text); err == nil {
		return data, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", MalformedPayloadErr)
	}
	return data, nil
}
