// Package table manages the fixed on-disk inode table: a gap-free array of
// exactly InodeCount records spread across the reserved table region. The
// whole table is rewritten on any change; write amplification is the price
// for a table that is always decodable without a separate free list.
package table

import (
	"fmt"

	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/types"
)

// Load decodes the full table and keeps only live records: mode 0 marks a
// free slot, except the root inode which is always live.
func Load(
	s store.BlockStore,
	sb *types.Superblock,
) (map[types.Ino]*types.Inode, error) {
	p, err := store.ReadRegion(s, sb.InodeTableStart, sb.InodeTableBlocks)
	if err != nil {
		return nil, fmt.Errorf("loading inode table: %w", err)
	}
	inodes := make(map[types.Ino]*types.Inode)
	for i := types.Ino(0); i < sb.InodeCount; i++ {
		var inode types.Inode
		if err := Decode(&inode, p, i); err != nil {
			return nil, fmt.Errorf("loading inode table: %w", err)
		}
		if inode.Ino == sb.RootIno || inode.Mode != 0 {
			record := inode
			inodes[inode.Ino] = &record
		}
	}
	return inodes, nil
}

// Decode extracts record `i` from the concatenated table bytes.
func Decode(out *types.Inode, p []byte, i types.Ino) error {
	offset := int(i) * int(types.InodeRecordSize)
	if offset+int(types.InodeRecordSize) > len(p) {
		return fmt.Errorf(
			"decoding table record `%d`: %w",
			i,
			types.TruncatedRecordErr,
		)
	}
	if err := types.DecodeInode(out, p[offset:]); err != nil {
		return fmt.Errorf("decoding table record `%d`: %w", i, err)
	}
	return nil
}

// Save re-serializes all InodeCount slots in id order, writing placeholder
// records (mode 0) for absent inos, and rewrites the whole table region.
func Save(
	s store.BlockStore,
	sb *types.Superblock,
	inodes map[types.Ino]*types.Inode,
) error {
	p := make([]byte, int(sb.InodeCount)*int(types.InodeRecordSize))
	for i := types.Ino(0); i < sb.InodeCount; i++ {
		inode, live := inodes[i]
		if !live {
			placeholder := types.Inode{Ino: i}
			inode = &placeholder
		}
		var record [types.InodeRecordSize]byte
		if err := types.EncodeInode(inode, &record); err != nil {
			return fmt.Errorf("saving inode table: %w", err)
		}
		copy(p[int(i)*int(types.InodeRecordSize):], record[:])
	}
	if err := store.WriteRegion(
		s,
		sb.InodeTableStart,
		sb.InodeTableBlocks,
		p,
	); err != nil {
		return fmt.Errorf("saving inode table: %w", err)
	}
	return nil
}

// FindFreeIno returns the lowest unused ino at or above InoFirst. Inos 0 and
// 1 are reserved: 0 for the root, 1 as the mount protocol's root alias.
func FindFreeIno(
	sb *types.Superblock,
	inodes map[types.Ino]*types.Inode,
) (types.Ino, bool) {
	for i := types.InoFirst; i < sb.InodeCount; i++ {
		if _, live := inodes[i]; !live {
			return i, true
		}
	}
	return 0, false
}
