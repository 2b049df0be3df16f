// Package store persists fixed-size blocks. The QRStore maps each block id
// to one QR image on disk; the MemStore holds blocks in memory for tests.
// Both share the same semantics: reads of never-written blocks are zero
// filled, short writes are zero padded, and a block is never persisted at
// less than its full size.
package store

import (
	"fmt"

	"github.com/weberc2/qrfs/pkg/types"
)

const (
	OutOfRangeErr     types.ConstError = "block id out of range"
	OversizedBlockErr types.ConstError = "payload exceeds block size"
)

type BlockStore interface {
	BlockSize() int
	TotalBlocks() types.Block

	// ReadBlock returns exactly BlockSize bytes. A block whose backing unit
	// does not exist yet reads back as all zeros; an existing but
	// undecodable unit is an error.
	ReadBlock(id types.Block) ([]byte, error)

	// WriteBlock persists a block, zero-padding payloads shorter than
	// BlockSize and rejecting longer ones.
	WriteBlock(id types.Block, data []byte) error

	// HasBlock reports whether a backing unit exists for the block. Used by
	// the upload companion's batch-scan mode to find the first unwritten
	// block.
	HasBlock(id types.Block) bool

	// InitEmpty materializes every block as an all-zero unit. Used by mkfs.
	InitEmpty() error
}

func checkRange(s BlockStore, id types.Block) error {
	if id >= s.TotalBlocks() {
		return fmt.Errorf(
			"block `%d` of `%d`: %w",
			id,
			s.TotalBlocks(),
			OutOfRangeErr,
		)
	}
	return nil
}

func checkSize(s BlockStore, id types.Block, data []byte) error {
	if len(data) > s.BlockSize() {
		return fmt.Errorf(
			"block `%d`: `%d` bytes exceed block size `%d`: %w",
			id,
			len(data),
			s.BlockSize(),
			OversizedBlockErr,
		)
	}
	return nil
}

// pad returns data zero-padded to the store's block size.
func pad(s BlockStore, data []byte) []byte {
	if len(data) == s.BlockSize() {
		return data
	}
	padded := make([]byte, s.BlockSize())
	copy(padded, data)
	return padded
}
