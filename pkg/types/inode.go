package types

import (
	"fmt"
	"time"
)

type InodeKind uint8

const (
	KindFile InodeKind = iota
	KindDir
)

func (kind InodeKind) String() string {
	switch kind {
	case KindFile:
		return "File"
	case KindDir:
		return "Dir"
	default:
		return fmt.Sprintf("InodeKind(%d)", uint8(kind))
	}
}

// Inode is one fixed-format record in the inode table. Mode 0 marks a free
// slot; the record is still written to disk as a placeholder so the table
// stays a gap-free array.
type Inode struct {
	Ino        Ino
	Kind       InodeKind
	Mode       uint16
	Size       uint64
	CreatedAt  uint64
	ModifiedAt uint64
	Blocks     []Block
}

func NewInode(ino Ino, kind InodeKind, mode uint16) Inode {
	now := uint64(time.Now().Unix())
	return Inode{
		Ino:        ino,
		Kind:       kind,
		Mode:       mode,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// Validate checks the record against the volume geometry: the ino must be in
// range, every direct block must fall inside the data region, and the
// timestamps must be ordered.
func (inode *Inode) Validate(sb *Superblock) error {
	if inode.Ino >= sb.InodeCount {
		return fmt.Errorf(
			"validating inode `%d`: inode count is `%d`: %w",
			inode.Ino,
			sb.InodeCount,
			InoOutOfRangeErr,
		)
	}
	for _, block := range inode.Blocks {
		if block < sb.DataStart {
			return fmt.Errorf(
				"validating inode `%d`: block `%d` precedes data start `%d`: %w",
				inode.Ino,
				block,
				sb.DataStart,
				BlockReservedErr,
			)
		}
		if block >= sb.TotalBlocks {
			return fmt.Errorf(
				"validating inode `%d`: block `%d` exceeds total `%d`: %w",
				inode.Ino,
				block,
				sb.TotalBlocks,
				BlockOutOfRangeErr,
			)
		}
	}
	if inode.CreatedAt == 0 {
		return fmt.Errorf(
			"validating inode `%d`: created-at is zero: %w",
			inode.Ino,
			BadTimestampsErr,
		)
	}
	if inode.ModifiedAt < inode.CreatedAt {
		return fmt.Errorf(
			"validating inode `%d`: %w",
			inode.Ino,
			BadTimestampsErr,
		)
	}
	return nil
}
