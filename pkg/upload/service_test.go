package upload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	pz "github.com/weberc2/httpeasy"
	pztest "github.com/weberc2/httpeasy/testsupport"

	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/types"
)

func TestUpload(t *testing.T) {
	payload := []byte("scanned block bytes")
	for _, testCase := range []struct {
		name         string
		input        string
		wantedStatus int
	}{
		{
			name: "bare base64",
			input: fmt.Sprintf(
				`{"block_id": 3, "content": "%s"}`,
				base64.StdEncoding.EncodeToString(payload),
			),
			wantedStatus: 200,
		},
		{
			name: "json envelope",
			input: fmt.Sprintf(
				`{"block_id": 3, "content": "{\"block_id\":3,\"data\":\"%s\"}"}`,
				base64.StdEncoding.EncodeToString(payload),
			),
			wantedStatus: 200,
		},
		{
			name:         "corrupt payload",
			input:        `{"block_id": 3, "content": "!!not//base64!!"}`,
			wantedStatus: 400,
		},
		{
			name:         "malformed request json",
			input:        `{"block_id": `,
			wantedStatus: 400,
		},
		{
			name: "block id out of range",
			input: fmt.Sprintf(
				`{"block_id": 999, "content": "%s"}`,
				base64.StdEncoding.EncodeToString(payload),
			),
			wantedStatus: 500,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			s := store.NewMemStore(int(types.DefaultBlockSize), 16)
			service := NewService(s)

			rsp := service.UploadRoute().Handler(pz.Request{
				Body: strings.NewReader(testCase.input),
			})
			if rsp.Status != testCase.wantedStatus {
				data, err := json.Marshal(rsp.Logging)
				if err != nil {
					t.Logf("failed to marshal handler logs: %v", err)
				}
				t.Logf("request logs: %s", data)
				t.Fatalf(
					"wanted `%d`; found `%d`",
					testCase.wantedStatus,
					rsp.Status,
				)
			}

			if testCase.wantedStatus != 200 {
				return
			}
			block, err := s.ReadBlock(3)
			if err != nil {
				t.Fatalf("ReadBlock(): unexpected err: %v", err)
			}
			if !bytes.Equal(block[:len(payload)], payload) {
				t.Fatalf(
					"wanted block to start with `%q`; found `%q`",
					payload,
					block[:len(payload)],
				)
			}
		})
	}
}

func TestScan(t *testing.T) {
	s := store.NewMemStore(int(types.DefaultBlockSize), 4)
	service := NewService(s)

	// blocks 0 and 1 written; 2 is the first gap
	for id := types.Block(0); id < 2; id++ {
		if err := s.WriteBlock(id, []byte{1}); err != nil {
			t.Fatalf("WriteBlock(): unexpected err: %v", err)
		}
	}

	rsp := service.ScanRoute().Handler(pz.Request{
		Body: strings.NewReader(""),
	})
	if rsp.Status != 200 {
		t.Fatalf("wanted `200`; found `%d`", rsp.Status)
	}

	body, err := pztest.ReadAll(rsp.Data)
	if err != nil {
		t.Fatalf("reading response body: unexpected err: %v", err)
	}
	var result struct {
		NextBlock types.Block `json:"next_block"`
		Remaining types.Block `json:"remaining"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("parsing response JSON: unexpected err: %v", err)
	}
	if result.NextBlock != 2 {
		t.Fatalf("wanted next block `2`; found `%d`", result.NextBlock)
	}
	if result.Remaining != 2 {
		t.Fatalf("wanted `2` remaining; found `%d`", result.Remaining)
	}
}

func TestScanAssignsPayload(t *testing.T) {
	payload := []byte("capture with no printed id")
	s := store.NewMemStore(int(types.DefaultBlockSize), 4)
	service := NewService(s)

	// blocks 0 and 1 written; the capture should land on 2
	for id := types.Block(0); id < 2; id++ {
		if err := s.WriteBlock(id, []byte{1}); err != nil {
			t.Fatalf("WriteBlock(): unexpected err: %v", err)
		}
	}

	rsp := service.ScanRoute().Handler(pz.Request{
		Body: strings.NewReader(fmt.Sprintf(
			`{"content": "%s"}`,
			base64.StdEncoding.EncodeToString(payload),
		)),
	})
	if rsp.Status != 200 {
		t.Fatalf("wanted `200`; found `%d`", rsp.Status)
	}

	body, err := pztest.ReadAll(rsp.Data)
	if err != nil {
		t.Fatalf("reading response body: unexpected err: %v", err)
	}
	var result struct {
		Status    string      `json:"status"`
		Block     types.Block `json:"block"`
		Remaining types.Block `json:"remaining"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("parsing response JSON: unexpected err: %v", err)
	}
	if result.Block != 2 {
		t.Fatalf("wanted assigned block `2`; found `%d`", result.Block)
	}
	if result.Remaining != 1 {
		t.Fatalf("wanted `1` remaining; found `%d`", result.Remaining)
	}

	block, err := s.ReadBlock(2)
	if err != nil {
		t.Fatalf("ReadBlock(): unexpected err: %v", err)
	}
	if !bytes.Equal(block[:len(payload)], payload) {
		t.Fatalf(
			"wanted block to start with `%q`; found `%q`",
			payload,
			block[:len(payload)],
		)
	}
}

func TestScanRejectsCorruptPayload(t *testing.T) {
	service := NewService(store.NewMemStore(int(types.DefaultBlockSize), 4))
	rsp := service.ScanRoute().Handler(pz.Request{
		Body: strings.NewReader(`{"content": "!!not//base64!!"}`),
	})
	if rsp.Status != 400 {
		t.Fatalf("wanted `400`; found `%d`", rsp.Status)
	}
}

func TestScanRejectsPayloadOnFullVolume(t *testing.T) {
	s := store.NewMemStore(int(types.DefaultBlockSize), 2)
	service := NewService(s)
	for id := types.Block(0); id < 2; id++ {
		if err := s.WriteBlock(id, []byte{1}); err != nil {
			t.Fatalf("WriteBlock(): unexpected err: %v", err)
		}
	}

	rsp := service.ScanRoute().Handler(pz.Request{
		Body: strings.NewReader(fmt.Sprintf(
			`{"content": "%s"}`,
			base64.StdEncoding.EncodeToString([]byte("late capture")),
		)),
	})
	if rsp.Status != 400 {
		t.Fatalf("wanted `400`; found `%d`", rsp.Status)
	}
}

func TestHealth(t *testing.T) {
	service := NewService(store.NewMemStore(int(types.DefaultBlockSize), 4))
	rsp := service.HealthRoute().Handler(pz.Request{})
	if rsp.Status != 200 {
		t.Fatalf("wanted `200`; found `%d`", rsp.Status)
	}
}
