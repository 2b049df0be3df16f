package types

import (
	"fmt"

	"github.com/google/uuid"
)

// Superblock is the block-0 record describing the volume's geometry. It is
// derived once at format time and immutable thereafter.
type Superblock struct {
	Magic            uint32
	Version          uint32
	BlockSize        uint32
	TotalBlocks      Block
	FreeMapStart     Block
	FreeMapBlocks    Block
	InodeTableStart  Block
	InodeTableBlocks Block
	InodeCount       Ino
	RootIno          Ino
	DataStart        Block
	VolumeID         uuid.UUID
}

// BitmapBytes returns the number of bytes needed to hold one bit per block.
func BitmapBytes(totalBlocks Block) uint32 {
	return DivCeil(uint32(totalBlocks), 8)
}

// DeriveLayout computes the volume geometry for a given block and inode
// count. Block 0 holds the superblock, the free map follows immediately, then
// the inode table, then data blocks. Pure arithmetic; a degenerate result
// (e.g. more metadata than blocks) is reported by Validate, not here.
func DeriveLayout(totalBlocks Block, inodeCount Ino, blockSize uint32) Superblock {
	freeMapStart := Block(1)
	freeMapBlocks := Block(Max(DivCeil(BitmapBytes(totalBlocks), blockSize), 1))
	inodeTableStart := freeMapStart + freeMapBlocks
	inodeTableBlocks := Block(DivCeil(uint32(inodeCount)*InodeRecordSize, blockSize))
	return Superblock{
		Magic:            Magic,
		Version:          Version,
		BlockSize:        blockSize,
		TotalBlocks:      totalBlocks,
		FreeMapStart:     freeMapStart,
		FreeMapBlocks:    freeMapBlocks,
		InodeTableStart:  inodeTableStart,
		InodeTableBlocks: inodeTableBlocks,
		InodeCount:       inodeCount,
		RootIno:          InoRoot,
		DataStart:        inodeTableStart + inodeTableBlocks,
		VolumeID:         uuid.New(),
	}
}

// Validate checks the magic, version, and region invariants: block 0 is
// reserved, the free map, inode table, and data region must not overlap, and
// the data region must begin inside the volume.
func (sb *Superblock) Validate() error {
	if sb.Magic != Magic {
		return fmt.Errorf(
			"validating superblock: wanted magic `0x%08X`; found `0x%08X`: %w",
			Magic,
			sb.Magic,
			BadMagicErr,
		)
	}
	if sb.Version != Version {
		return fmt.Errorf(
			"validating superblock: wanted version `%d`; found `%d`: %w",
			Version,
			sb.Version,
			BadVersionErr,
		)
	}
	switch sb.BlockSize {
	case 128, 256, 512, 1024:
	default:
		return fmt.Errorf(
			"validating superblock: block size `%d`: %w",
			sb.BlockSize,
			BadBlockSizeErr,
		)
	}
	if sb.FreeMapStart < 1 {
		return fmt.Errorf(
			"validating superblock: free map starts in block 0: %w",
			LayoutOverlapErr,
		)
	}
	if sb.InodeTableStart < sb.FreeMapStart+sb.FreeMapBlocks {
		return fmt.Errorf(
			"validating superblock: inode table overlaps free map: %w",
			LayoutOverlapErr,
		)
	}
	if sb.DataStart < sb.InodeTableStart+sb.InodeTableBlocks {
		return fmt.Errorf(
			"validating superblock: data region overlaps inode table: %w",
			LayoutOverlapErr,
		)
	}
	if sb.DataStart >= sb.TotalBlocks {
		return fmt.Errorf(
			"validating superblock: data starts at `%d` of `%d` blocks: %w",
			sb.DataStart,
			sb.TotalBlocks,
			LayoutOverflowErr,
		)
	}
	return nil
}
