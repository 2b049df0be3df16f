package types

import (
	"encoding/binary"
	"fmt"
)

// DecodeSuperblock decodes the block-0 record. Magic and version mismatches
// are reported here so that callers can distinguish "not a QRFS volume" from
// geometry problems, which Validate reports.
func DecodeSuperblock(out *Superblock, p []byte) error {
	if len(p) < SuperblockSize {
		return fmt.Errorf(
			"decoding superblock: `%d` of `%d` bytes: %w",
			len(p),
			SuperblockSize,
			TruncatedRecordErr,
		)
	}
	out.Magic = getU32(p[sbFieldMagic:])
	if out.Magic != Magic {
		return fmt.Errorf(
			"decoding superblock: wanted magic `0x%08X`; found `0x%08X`: %w",
			Magic,
			out.Magic,
			BadMagicErr,
		)
	}
	out.Version = getU32(p[sbFieldVersion:])
	if out.Version != Version {
		return fmt.Errorf(
			"decoding superblock: wanted version `%d`; found `%d`: %w",
			Version,
			out.Version,
			BadVersionErr,
		)
	}
	out.BlockSize = getU32(p[sbFieldBlockSize:])
	out.TotalBlocks = Block(getU32(p[sbFieldTotalBlocks:]))
	out.FreeMapStart = Block(getU32(p[sbFieldFreeMapStart:]))
	out.FreeMapBlocks = Block(getU32(p[sbFieldFreeMapBlocks:]))
	out.InodeTableStart = Block(getU32(p[sbFieldInodeTableStart:]))
	out.InodeTableBlocks = Block(getU32(p[sbFieldInodeTableBlocks:]))
	out.InodeCount = Ino(getU32(p[sbFieldInodeCount:]))
	out.RootIno = Ino(getU32(p[sbFieldRootIno:]))
	out.DataStart = Block(getU32(p[sbFieldDataStart:]))
	copy(out.VolumeID[:], p[sbFieldVolumeID:sbFieldVolumeID+16])
	return nil
}

func DecodeInode(out *Inode, p []byte) error {
	if len(p) < int(InodeRecordSize) {
		return fmt.Errorf(
			"decoding inode: `%d` of `%d` bytes: %w",
			len(p),
			InodeRecordSize,
			TruncatedRecordErr,
		)
	}
	out.Ino = Ino(getU32(p[inoFieldIno:]))
	out.Mode = getU16(p[inoFieldMode:])
	out.Kind = InodeKind(p[inoFieldKind])
	out.Size = getU64(p[inoFieldSize:])
	out.CreatedAt = getU64(p[inoFieldCreatedAt:])
	out.ModifiedAt = getU64(p[inoFieldModifiedAt:])
	blockCount := getU32(p[inoFieldBlockCount:])
	if blockCount > MaxDirectBlocks {
		return fmt.Errorf(
			"decoding inode `%d`: `%d` blocks: %w",
			out.Ino,
			blockCount,
			TooManyBlocksErr,
		)
	}
	out.Blocks = nil
	if blockCount > 0 {
		out.Blocks = make([]Block, blockCount)
		for i := range out.Blocks {
			out.Blocks[i] = Block(getU32(p[inoFieldBlocks+i*4:]))
		}
	}
	return nil
}

// DecodeDirEntries decodes a directory blob. An empty payload is an empty
// directory, not an error: a freshly formatted volume has no entries yet.
func DecodeDirEntries(p []byte) ([]DirEntry, error) {
	if len(p) == 0 {
		return nil, nil
	}
	if len(p) < 4 {
		return nil, fmt.Errorf(
			"decoding dir entries: `%d` bytes: %w",
			len(p),
			TruncatedRecordErr,
		)
	}
	count := getU32(p)
	// count comes off disk; cap the pre-allocation by what the payload
	// could possibly hold so a corrupt header can't force a huge alloc
	limit := uint32(len(p) / dirEntryHeaderSize)
	entries := make([]DirEntry, 0, Min(count, limit))
	cursor := 4
	for i := uint32(0); i < count; i++ {
		if cursor+dirEntryHeaderSize > len(p) {
			return nil, fmt.Errorf(
				"decoding dir entry `%d`: %w",
				i,
				TruncatedRecordErr,
			)
		}
		ino := Ino(getU32(p[cursor:]))
		kind := InodeKind(p[cursor+4])
		nameLen := int(p[cursor+5])
		cursor += dirEntryHeaderSize
		if cursor+nameLen > len(p) {
			return nil, fmt.Errorf(
				"decoding dir entry `%d`: %w",
				i,
				TruncatedRecordErr,
			)
		}
		entries = append(entries, DirEntry{
			Name: string(p[cursor : cursor+nameLen]),
			Ino:  ino,
			Kind: kind,
		})
		cursor += nameLen
	}
	return entries, nil
}

func getU16(p []byte) uint16 { return binary.BigEndian.Uint16(p) }
func getU32(p []byte) uint32 { return binary.BigEndian.Uint32(p) }
func getU64(p []byte) uint64 { return binary.BigEndian.Uint64(p) }
