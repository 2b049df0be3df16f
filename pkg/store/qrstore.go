package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/weberc2/qrfs/pkg/qr"
	"github.com/weberc2/qrfs/pkg/types"
)

// QRStore persists each block as one QR PNG in a directory. The image file
// for block N is named NNNNNN.png; a missing file means the block was never
// written and reads back as zeros.
type QRStore struct {
	dir         string
	blockSize   int
	totalBlocks types.Block
}

func NewQRStore(
	dir string,
	blockSize int,
	totalBlocks types.Block,
) (*QRStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating QR store at `%s`: %w", dir, err)
	}
	return &QRStore{
		dir:         dir,
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
	}, nil
}

func (s *QRStore) BlockSize() int { return s.blockSize }
func (s *QRStore) TotalBlocks() types.Block { return s.totalBlocks }
func (s *QRStore) BlockPath(id types.Block) string {
	return filepath.Join(s.dir, fmt.Sprintf("%06d.png", id))
}

func (s *QRStore) HasBlock(id types.Block) bool {
	_, err := os.Stat(s.BlockPath(id))
	return err == nil
}

func (s *QRStore) ReadBlock(id types.Block) ([]byte, error) {
	if err := checkRange(s, id); err != nil {
		return nil, fmt.Errorf("reading block: %w", err)
	}
	png, err := os.ReadFile(s.BlockPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			// allocated but never written; distinct from a corrupt unit
			return make([]byte, s.blockSize), nil
		}
		return nil, fmt.Errorf("reading block `%d`: %w", id, err)
	}
	data, err := qr.Decode(png)
	if err != nil {
		return nil, fmt.Errorf("reading block `%d`: %w", id, err)
	}
	if len(data) > s.blockSize {
		return nil, fmt.Errorf(
			"reading block `%d`: decoded `%d` bytes: %w",
			id,
			len(data),
			OversizedBlockErr,
		)
	}
	// legacy encoders persisted unpadded payloads
	return pad(s, data), nil
}

func (s *QRStore) WriteBlock(id types.Block, data []byte) error {
	if err := checkRange(s, id); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	if err := checkSize(s, id, data); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	png, err := qr.Encode(id, pad(s, data))
	if err != nil {
		return fmt.Errorf("writing block `%d`: %w", id, err)
	}
	if err := os.WriteFile(s.BlockPath(id), png, 0o644); err != nil {
		return fmt.Errorf("writing block `%d`: %w", id, err)
	}
	return nil
}

func (s *QRStore) InitEmpty() error {
	empty := make([]byte, s.blockSize)
	for id := types.Block(0); id < s.totalBlocks; id++ {
		if err := s.WriteBlock(id, empty); err != nil {
			return fmt.Errorf("initializing empty blocks: %w", err)
		}
	}
	return nil
}

var _ BlockStore = (*QRStore)(nil)
