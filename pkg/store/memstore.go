package store

import (
	"fmt"

	"github.com/weberc2/qrfs/pkg/types"
)

// MemStore keeps blocks in memory with the same write-through semantics as
// the QRStore, minus the image codec. Driver and checker tests run against
// it.
type MemStore struct {
	blocks      [][]byte
	blockSize   int
	totalBlocks types.Block
}

func NewMemStore(blockSize int, totalBlocks types.Block) *MemStore {
	return &MemStore{
		blocks:      make([][]byte, totalBlocks),
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
	}
}

func (s *MemStore) BlockSize() int { return s.blockSize }
func (s *MemStore) TotalBlocks() types.Block { return s.totalBlocks }

func (s *MemStore) HasBlock(id types.Block) bool {
	return id < s.totalBlocks && s.blocks[id] != nil
}

func (s *MemStore) ReadBlock(id types.Block) ([]byte, error) {
	if err := checkRange(s, id); err != nil {
		return nil, fmt.Errorf("reading block: %w", err)
	}
	if s.blocks[id] == nil {
		return make([]byte, s.blockSize), nil
	}
	out := make([]byte, s.blockSize)
	copy(out, s.blocks[id])
	return out, nil
}

func (s *MemStore) WriteBlock(id types.Block, data []byte) error {
	if err := checkRange(s, id); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	if err := checkSize(s, id, data); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	block := make([]byte, s.blockSize)
	copy(block, data)
	s.blocks[id] = block
	return nil
}

func (s *MemStore) InitEmpty() error {
	for id := range s.blocks {
		s.blocks[id] = make([]byte, s.blockSize)
	}
	return nil
}

var _ BlockStore = (*MemStore)(nil)
