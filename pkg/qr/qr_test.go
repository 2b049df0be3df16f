package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	data := []byte("hello qrfs world 12345")
	png, err := Encode(7, data)
	if err != nil {
		t.Fatalf("Encode(): unexpected err: %v", err)
	}
	decoded, err := Decode(png)
	if err != nil {
		t.Fatalf("Decode(): unexpected err: %v", err)
	}
	if !bytes.Equal(data, decoded) {
		t.Fatalf("wanted `%q`; found `%q`", data, decoded)
	}
}

func TestRoundTripBinary(t *testing.T) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i * 7)
	}
	png, err := Encode(0, data)
	if err != nil {
		t.Fatalf("Encode(): unexpected err: %v", err)
	}
	decoded, err := Decode(png)
	if err != nil {
		t.Fatalf("Decode(): unexpected err: %v", err)
	}
	if !bytes.Equal(data, decoded) {
		t.Fatalf("wanted `%x`; found `%x`", data, decoded)
	}
}

func TestDecodePayloadFormats(t *testing.T) {
	data := []byte("legacy block content")
	for _, testCase := range []struct {
		name    string
		payload string
	}{
		{
			"json envelope",
			`{"block_id": 3, "data": "` +
				base64.StdEncoding.EncodeToString(data) + `"}`,
		},
		{"bare base64", base64.StdEncoding.EncodeToString(data)},
		{"url-safe base64", base64.RawURLEncoding.EncodeToString(data)},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			decoded, err := DecodePayload(testCase.payload)
			if err != nil {
				t.Fatalf("DecodePayload(): unexpected err: %v", err)
			}
			if !bytes.Equal(data, decoded) {
				t.Fatalf("wanted `%q`; found `%q`", data, decoded)
			}
		})
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	if _, err := DecodePayload("!!! not base64 !!!"); !errors.Is(
		err,
		MalformedPayloadErr,
	) {
		t.Fatalf("wanted `%v`; found `%v`", MalformedPayloadErr, err)
	}
}

func TestDecodeNoCode(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(
		&buf,
		image.NewGray(image.Rect(0, 0, 200, 200)),
	); err != nil {
		t.Fatalf("encoding blank PNG: unexpected err: %v", err)
	}
	if _, err := Decode(buf.Bytes()); !errors.Is(err, NoCodeDetectedErr) {
		t.Fatalf("wanted `%v`; found `%v`", NoCodeDetectedErr, err)
	}
}
