package types

import (
	"encoding/binary"
	"fmt"
)

const (
	sbFieldMagic            = 0
	sbFieldVersion          = 4
	sbFieldBlockSize        = 8
	sbFieldTotalBlocks      = 12
	sbFieldFreeMapStart     = 16
	sbFieldFreeMapBlocks    = 20
	sbFieldInodeTableStart  = 24
	sbFieldInodeTableBlocks = 28
	sbFieldInodeCount       = 32
	sbFieldRootIno          = 36
	sbFieldDataStart        = 40
	sbFieldVolumeID         = 44

	// SuperblockSize is the size of the serialized superblock record.
	SuperblockSize = 60

	inoFieldIno        = 0
	inoFieldMode       = 4
	inoFieldKind       = 6
	inoFieldPad        = 7
	inoFieldSize       = 8
	inoFieldCreatedAt  = 16
	inoFieldModifiedAt = 24
	inoFieldBlockCount = 32
	inoFieldBlocks     = 36

	dirEntryHeaderSize = 6 // ino u32, kind u8, name length u8
)

func EncodeSuperblock(sb *Superblock, p *[SuperblockSize]byte) {
	putU32(p[sbFieldMagic:], sb.Magic)
	putU32(p[sbFieldVersion:], sb.Version)
	putU32(p[sbFieldBlockSize:], sb.BlockSize)
	putU32(p[sbFieldTotalBlocks:], uint32(sb.TotalBlocks))
	putU32(p[sbFieldFreeMapStart:], uint32(sb.FreeMapStart))
	putU32(p[sbFieldFreeMapBlocks:], uint32(sb.FreeMapBlocks))
	putU32(p[sbFieldInodeTableStart:], uint32(sb.InodeTableStart))
	putU32(p[sbFieldInodeTableBlocks:], uint32(sb.InodeTableBlocks))
	putU32(p[sbFieldInodeCount:], uint32(sb.InodeCount))
	putU32(p[sbFieldRootIno:], uint32(sb.RootIno))
	putU32(p[sbFieldDataStart:], uint32(sb.DataStart))
	copy(p[sbFieldVolumeID:], sb.VolumeID[:])
}

// EncodeInode packs one inode record. The record must fit in exactly
// InodeRecordSize bytes, which caps the direct block list.
func EncodeInode(inode *Inode, p *[InodeRecordSize]byte) error {
	if len(inode.Blocks) > MaxDirectBlocks {
		return fmt.Errorf(
			"encoding inode `%d`: `%d` blocks: %w",
			inode.Ino,
			len(inode.Blocks),
			TooManyBlocksErr,
		)
	}
	putU32(p[inoFieldIno:], uint32(inode.Ino))
	putU16(p[inoFieldMode:], inode.Mode)
	p[inoFieldKind] = byte(inode.Kind)
	p[inoFieldPad] = 0
	putU64(p[inoFieldSize:], inode.Size)
	putU64(p[inoFieldCreatedAt:], inode.CreatedAt)
	putU64(p[inoFieldModifiedAt:], inode.ModifiedAt)
	putU32(p[inoFieldBlockCount:], uint32(len(inode.Blocks)))
	for i, block := range inode.Blocks {
		putU32(p[inoFieldBlocks+i*4:], uint32(block))
	}
	return nil
}

// EncodeDirEntries serializes the full entry list as one blob: a u32 entry
// count followed by (ino u32, kind u8, name length u8, name) per entry.
func EncodeDirEntries(entries []DirEntry) ([]byte, error) {
	size := 4
	for i := range entries {
		if len(entries[i].Name) > MaxNameLen {
			return nil, fmt.Errorf(
				"encoding dir entry `%s...`: %w",
				entries[i].Name[:16],
				NameTooLongErr,
			)
		}
		size += dirEntryHeaderSize + len(entries[i].Name)
	}
	p := make([]byte, size)
	putU32(p, uint32(len(entries)))
	cursor := 4
	for i := range entries {
		putU32(p[cursor:], uint32(entries[i].Ino))
		p[cursor+4] = byte(entries[i].Kind)
		p[cursor+5] = byte(len(entries[i].Name))
		copy(p[cursor+dirEntryHeaderSize:], entries[i].Name)
		cursor += dirEntryHeaderSize + len(entries[i].Name)
	}
	return p, nil
}

func putU16(p []byte, u uint16) { binary.BigEndian.PutUint16(p, u) }
func putU32(p []byte, u uint32) { binary.BigEndian.PutUint32(p, u) }
func putU64(p []byte, u uint64) { binary.BigEndian.PutUint64(p, u) }
