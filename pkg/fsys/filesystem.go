// Package fsys is the stateful filesystem driver. A FileSystem owns the
// superblock, inode map, block bitmap, and root directory cache for the life
// of a mount; the kernel-facing protocol serializes operations, so no
// internal locking is needed. Every mutating operation is write-through: the
// affected on-disk regions are rewritten before the operation reports
// success.
package fsys

import (
	"fmt"
	"log"

	"github.com/weberc2/qrfs/pkg/alloc"
	"github.com/weberc2/qrfs/pkg/dir"
	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/table"
	"github.com/weberc2/qrfs/pkg/types"
)

type FileSystem struct {
	Store      store.BlockStore
	Superblock types.Superblock
	Inodes     map[types.Ino]*types.Inode
	Bitmap     *alloc.Bitmap
	DirCache   map[string]types.Ino
}

// Load mounts a formatted volume: superblock from block 0, then bitmap,
// inode table, and root directory. A directory that fails to decode is not
// fatal — a freshly formatted volume legitimately has none — but the failure
// is logged.
func Load(s store.BlockStore) (*FileSystem, error) {
	p, err := s.ReadBlock(0)
	if err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}
	fs := FileSystem{Store: s, DirCache: make(map[string]types.Ino)}
	if err := types.DecodeSuperblock(&fs.Superblock, p); err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}
	if err := fs.Superblock.Validate(); err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}

	if fs.Bitmap, err = alloc.Load(s, &fs.Superblock); err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}
	if fs.Inodes, err = table.Load(s, &fs.Superblock); err != nil {
		return nil, fmt.Errorf("loading filesystem: %w", err)
	}

	entries, err := dir.Load(s, &fs.Superblock, fs.Inodes[fs.Superblock.RootIno])
	if err != nil {
		log.Printf("loading root directory (normal on a new volume): %v", err)
	}
	for _, entry := range entries {
		if entry.Name != "." && entry.Name != ".." {
			fs.DirCache[entry.Name] = entry.Ino
		}
	}
	return &fs, nil
}

// Format initializes a volume on the given store: every block materialized
// as an all-zero unit, then superblock, bitmap with the reserved region
// marked used, inode table with a live root directory, and an empty root
// directory blob.
func Format(s store.BlockStore, inodeCount types.Ino) error {
	sb := types.DeriveLayout(
		s.TotalBlocks(),
		inodeCount,
		uint32(s.BlockSize()),
	)
	if err := sb.Validate(); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	if err := s.InitEmpty(); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	var p [types.SuperblockSize]byte
	types.EncodeSuperblock(&sb, &p)
	if err := s.WriteBlock(0, p[:]); err != nil {
		return fmt.Errorf("formatting: writing superblock: %w", err)
	}

	bm := alloc.New(&sb)
	if err := bm.Save(s, &sb); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	root := types.NewInode(sb.RootIno, types.KindDir, 0o755)
	inodes := map[types.Ino]*types.Inode{sb.RootIno: &root}
	if err := table.Save(s, &sb, inodes); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	if err := dir.Save(
		s,
		&sb,
		bm,
		inodes,
		map[string]types.Ino{},
	); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}
	return nil
}

// Resolve translates the mount protocol's synthetic root id 1 to the
// volume's root inode; every operation boundary goes through this.
func (fs *FileSystem) Resolve(ino uint64) types.Ino {
	if ino == 1 {
		return fs.Superblock.RootIno
	}
	return types.Ino(ino)
}
