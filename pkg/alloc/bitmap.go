// Package alloc tracks free and used data blocks with one bit per block.
// Bit i of byte b covers block b*8+i (LSB first); the reserved metadata
// region is pre-marked used and never released. Allocation and freeing are
// in-memory bit operations; persisting the map to disk is a separate,
// explicit step.
package alloc

import (
	"fmt"

	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/types"
)

const bitsPerByte = 8

type Bitmap struct {
	bits      []byte
	dataStart types.Block
	total     types.Block
}

// New returns a bitmap for a freshly formatted volume: every block below the
// data region marked used, everything else free.
func New(sb *types.Superblock) *Bitmap {
	bm := &Bitmap{
		bits:      make([]byte, types.BitmapBytes(sb.TotalBlocks)),
		dataStart: sb.DataStart,
		total:     sb.TotalBlocks,
	}
	for id := types.Block(0); id < sb.DataStart; id++ {
		bm.Reserve(id)
	}
	return bm
}

// FromBytes wraps on-disk bitmap bytes, truncating any block-size padding.
func FromBytes(p []byte, sb *types.Superblock) *Bitmap {
	bits := make([]byte, types.BitmapBytes(sb.TotalBlocks))
	copy(bits, p)
	return &Bitmap{bits: bits, dataStart: sb.DataStart, total: sb.TotalBlocks}
}

// Alloc claims and returns the lowest free block at or above the data
// region, or false if the volume is full. It never allocates inside the
// reserved region even if those bits read clear.
func (bm *Bitmap) Alloc() (types.Block, bool) {
	for byt := int(bm.dataStart) / bitsPerByte; byt < len(bm.bits); byt++ {
		if bm.bits[byt] == 0xFF {
			continue
		}
		for bit := 0; bit < bitsPerByte; bit++ {
			id := types.Block(byt*bitsPerByte + bit)
			if id < bm.dataStart {
				continue
			}
			if id >= bm.total {
				return 0, false
			}
			if bm.bits[byt]&(1<<bit) == 0 {
				bm.bits[byt] |= 1 << bit
				return id, true
			}
		}
	}
	return 0, false
}

// Free clears a block's bit; freeing an already-free block is a no-op.
func (bm *Bitmap) Free(id types.Block) {
	if int(id)/bitsPerByte < len(bm.bits) {
		bm.bits[id/bitsPerByte] &= ^(1 << (id % bitsPerByte))
	}
}

func (bm *Bitmap) Reserve(id types.Block) {
	bm.bits[id/bitsPerByte] |= 1 << (id % bitsPerByte)
}

func (bm *Bitmap) IsSet(id types.Block) bool {
	return bm.bits[id/bitsPerByte]&(1<<(id%bitsPerByte)) != 0
}

func (bm *Bitmap) UsedCount() types.Block {
	var used types.Block
	for id := types.Block(0); id < bm.total; id++ {
		if bm.IsSet(id) {
			used++
		}
	}
	return used
}

func (bm *Bitmap) FreeCount() types.Block { return bm.total - bm.UsedCount() }

func (bm *Bitmap) Bytes() []byte { return bm.bits }

// Load reads the free-map region from the store.
func Load(s store.BlockStore, sb *types.Superblock) (*Bitmap, error) {
	p, err := store.ReadRegion(s, sb.FreeMapStart, sb.FreeMapBlocks)
	if err != nil {
		return nil, fmt.Errorf("loading bitmap: %w", err)
	}
	return FromBytes(p, sb), nil
}

// Save writes the bitmap back across the free-map region. Callers persist
// after allocating and before handing the new block id to another writer, so
// a crash can leak a block but never double-allocate one.
func (bm *Bitmap) Save(s store.BlockStore, sb *types.Superblock) error {
	if err := store.WriteRegion(
		s,
		sb.FreeMapStart,
		sb.FreeMapBlocks,
		bm.bits,
	); err != nil {
		return fmt.Errorf("saving bitmap: %w", err)
	}
	return nil
}
