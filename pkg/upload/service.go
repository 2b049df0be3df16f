// Package upload is the companion HTTP service: a phone scans printed
// block images and posts the decoded text here, and the service re-encodes
// each payload into the backing store. Unlike the mounted driver, this
// service may see concurrent requests, so every store access holds a mutex.
package upload

import (
	html "html/template"
	"sync"

	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/qrfs/pkg/qr"
	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/types"
)

type Service struct {
	mu    sync.Mutex
	store store.BlockStore
}

func NewService(s store.BlockStore) *Service {
	return &Service{store: s}
}

type uploadRequest struct {
	BlockID types.Block `json:"block_id"`
	Content string      `json:"content"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (service *Service) UploadRoute() pz.Route {
	return pz.Route{
		Path:   "/upload",
		Method: "POST",
		Handler: func(r pz.Request) pz.Response {
			var req uploadRequest
			if err := r.JSON(&req); err != nil {
				return pz.BadRequest(
					pz.JSON(&statusResponse{
						Status:  "error",
						Message: "malformed upload JSON",
					}),
					struct {
						Message, Error string
					}{
						Message: "parsing upload JSON",
						Error:   err.Error(),
					},
				)
			}

			data, err := qr.DecodePayload(req.Content)
			if err != nil {
				return pz.BadRequest(
					pz.JSON(&statusResponse{
						Status:  "error",
						Message: "scanned payload is corrupt or unreadable",
					}),
					struct {
						Message, Error string
						Block          types.Block
					}{
						Message: "decoding scanned payload",
						Error:   err.Error(),
						Block:   req.BlockID,
					},
				)
			}

			service.mu.Lock()
			err = service.store.WriteBlock(req.BlockID, data)
			service.mu.Unlock()
			if err != nil {
				return pz.InternalServerError(struct {
					Message, Error string
					Block          types.Block
				}{
					Message: "writing scanned block",
					Error:   err.Error(),
					Block:   req.BlockID,
				})
			}

			return pz.Ok(
				pz.JSON(&statusResponse{
					Status:  "ok",
					Message: "block saved",
				}),
				struct {
					Message string
					Block   types.Block
					Bytes   int
				}{
					Message: "saved scanned block",
					Block:   req.BlockID,
					Bytes:   len(data),
				},
			)
		},
	}
}

type scanRequest struct {
	Content string `json:"content"`
}

type scanResponse struct {
	NextBlock types.Block `json:"next_block"`
	Remaining types.Block `json:"remaining"`
}

type assignedResponse struct {
	Status    string      `json:"status"`
	Block     types.Block `json:"block"`
	Remaining types.Block `json:"remaining"`
}

// ScanRoute files a capture whose printed block id is unknown: a payload is
// decoded and written to the first block with no persisted image yet, and
// the assigned id is returned. A payload-less request only reports where
// the next capture would go, so the scanner page can prompt for it.
func (service *Service) ScanRoute() pz.Route {
	return pz.Route{
		Path:   "/scan",
		Method: "POST",
		Handler: func(r pz.Request) pz.Response {
			var req scanRequest
			if err := r.JSON(&req); err != nil {
				// an empty or non-JSON body is a report-only request
				req.Content = ""
			}

			service.mu.Lock()
			defer service.mu.Unlock()

			total := service.store.TotalBlocks()
			var next types.Block
			var remaining types.Block
			found := false
			for id := types.Block(0); id < total; id++ {
				if !service.store.HasBlock(id) {
					if !found {
						next = id
						found = true
					}
					remaining++
				}
			}

			if req.Content == "" {
				if !found {
					return pz.Ok(
						pz.JSON(&statusResponse{
							Status:  "ok",
							Message: "every block is persisted",
						}),
						struct{ Message string }{"volume fully scanned"},
					)
				}
				return pz.Ok(
					pz.JSON(&scanResponse{
						NextBlock: next,
						Remaining: remaining,
					}),
					struct {
						Message   string
						Next      types.Block
						Remaining types.Block
					}{
						Message:   "located next unwritten block",
						Next:      next,
						Remaining: remaining,
					},
				)
			}

			if !found {
				return pz.BadRequest(
					pz.JSON(&statusResponse{
						Status:  "error",
						Message: "every block is already persisted",
					}),
					struct{ Message string }{
						"scan payload rejected: volume fully scanned",
					},
				)
			}

			data, err := qr.DecodePayload(req.Content)
			if err != nil {
				return pz.BadRequest(
					pz.JSON(&statusResponse{
						Status:  "error",
						Message: "scanned payload is corrupt or unreadable",
					}),
					struct {
						Message, Error string
					}{
						Message: "decoding scan payload",
						Error:   err.Error(),
					},
				)
			}

			if err := service.store.WriteBlock(next, data); err != nil {
				return pz.InternalServerError(struct {
					Message, Error string
					Block          types.Block
				}{
					Message: "writing scanned block",
					Error:   err.Error(),
					Block:   next,
				})
			}

			return pz.Ok(
				pz.JSON(&assignedResponse{
					Status:    "ok",
					Block:     next,
					Remaining: remaining - 1,
				}),
				struct {
					Message   string
					Block     types.Block
					Remaining types.Block
				}{
					Message:   "assigned scanned payload to block",
					Block:     next,
					Remaining: remaining - 1,
				},
			)
		},
	}
}

func (service *Service) ScannerPageRoute() pz.Route {
	return pz.Route{
		Path:   "/",
		Method: "GET",
		Handler: func(r pz.Request) pz.Response {
			return pz.Ok(pz.HTMLTemplate(scannerPage, struct {
				TotalBlocks types.Block
			}{
				TotalBlocks: service.store.TotalBlocks(),
			}))
		},
	}
}

func (service *Service) HealthRoute() pz.Route {
	return pz.Route{
		Path:   "/health",
		Method: "GET",
		Handler: func(r pz.Request) pz.Response {
			return pz.Ok(pz.String("OK"))
		},
	}
}

func (service *Service) Routes() []pz.Route {
	return []pz.Route{
		service.ScannerPageRoute(),
		service.UploadRoute(),
		service.ScanRoute(),
		service.HealthRoute(),
	}
}

var scannerPage = html.Must(html.New("").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>QRFS Scanner</title>
    <script src="https://unpkg.com/html5-qrcode" type="text/javascript"></script>
    <style>
        body { font-family: sans-serif; padding: 20px; text-align: center; background: #f0f2f5; }
        #reader { width: 100%; max-width: 500px; margin: 0 auto; border: 2px solid #333; }
        .input-group { margin: 20px 0; padding: 10px; background: white; border-radius: 8px; }
        input { padding: 10px; font-size: 1.5rem; width: 80px; text-align: center; }
        .status { margin-top: 20px; padding: 10px; border-radius: 5px; font-weight: bold; }
        .success { background-color: #d4edda; color: #155724; }
        .error { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h2>QRFS Scanner ({{ .TotalBlocks }} blocks)</h2>

    <div class="input-group">
        <label>Block ID:</label><br>
        <input type="number" id="blockId" value="0">
    </div>

    <div id="reader"></div>
    <div id="result" class="status">Waiting for a scan...</div>

    <script>
        let scanner = new Html5QrcodeScanner(
            "reader",
            { fps: 10, qrbox: {width: 250, height: 250} },
            false
        );

        function onScanSuccess(decodedText, decodedResult) {
            scanner.clear();

            let blockId = document.getElementById('blockId').value;
            let resultDiv = document.getElementById('result');

            resultDiv.innerText = "Saving block " + blockId + "...";
            resultDiv.className = "status";

            fetch('/upload', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({
                    block_id: parseInt(blockId),
                    content: decodedText.trim()
                })
            })
            .then(response => response.json())
            .then(data => {
                if (data.status === "ok") {
                    resultDiv.innerText = data.message;
                    resultDiv.className = "status success";
                    document.getElementById('blockId').value = parseInt(blockId) + 1;
                    setTimeout(() => { scanner.render(onScanSuccess); }, 1500);
                } else {
                    resultDiv.innerText = "Error: " + data.message;
                    resultDiv.className = "status error";
                    setTimeout(() => { scanner.render(onScanSuccess); }, 3000);
                }
            })
            .catch(err => {
                resultDiv.innerText = "Network error: " + err;
                resultDiv.className = "status error";
            });
        }

        scanner.render(onScanSuccess);
    </script>
</body>
</html>
`))
