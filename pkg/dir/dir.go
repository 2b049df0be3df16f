// Package dir persists the flat root directory. The entry list is one blob
// stored as ordinary file content owned by the root inode, re-serialized and
// rewritten on every structural change.
package dir

import (
	"fmt"
	"sort"
	"time"

	"github.com/weberc2/qrfs/pkg/alloc"
	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/table"
	"github.com/weberc2/qrfs/pkg/types"
)

const OutOfSpaceErr types.ConstError = "out of space saving directory"

// Load reads the root inode's blocks, trims the concatenation to the inode's
// size (trailing bytes are block padding, not data), and decodes the entry
// list. A root with no data yet yields an empty list, not an error.
func Load(
	s store.BlockStore,
	sb *types.Superblock,
	root *types.Inode,
) ([]types.DirEntry, error) {
	if root == nil || root.Size == 0 {
		return nil, nil
	}
	var raw []byte
	for _, block := range root.Blocks {
		p, err := s.ReadBlock(block)
		if err != nil {
			return nil, fmt.Errorf("loading directory: %w", err)
		}
		raw = append(raw, p...)
	}
	if uint64(len(raw)) < root.Size {
		return nil, nil
	}
	entries, err := types.DecodeDirEntries(raw[:root.Size])
	if err != nil {
		return nil, fmt.Errorf("loading directory: %w", err)
	}
	return entries, nil
}

// Save serializes the cache (plus synthetic `.` and `..` entries) into the
// root inode's blocks, growing the block list through the allocator if
// needed. Surplus blocks are not reclaimed on shrink. Persistence order is
// data blocks, then bitmap, then inode table: a crash mid-sequence leaves
// referenced blocks that the bitmap hasn't marked yet, which the checker
// reports rather than the volume silently losing data.
func Save(
	s store.BlockStore,
	sb *types.Superblock,
	bm *alloc.Bitmap,
	inodes map[types.Ino]*types.Inode,
	cache map[string]types.Ino,
) error {
	root, live := inodes[sb.RootIno]
	if !live {
		return fmt.Errorf(
			"saving directory: root inode `%d` missing",
			sb.RootIno,
		)
	}

	entries := make([]types.DirEntry, 0, len(cache)+2)
	entries = append(
		entries,
		types.DirEntry{Name: ".", Ino: sb.RootIno, Kind: types.KindDir},
		types.DirEntry{Name: "..", Ino: sb.RootIno, Kind: types.KindDir},
	)
	names := make([]string, 0, len(cache))
	for name := range cache {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kind := types.KindFile
		if inode, live := inodes[cache[name]]; live {
			kind = inode.Kind
		}
		entries = append(entries, types.DirEntry{
			Name: name,
			Ino:  cache[name],
			Kind: kind,
		})
	}

	data, err := types.EncodeDirEntries(entries)
	if err != nil {
		return fmt.Errorf("saving directory: %w", err)
	}

	blockSize := s.BlockSize()
	needed := types.DivCeil(len(data), blockSize)
	grew := false
	blocks := root.Blocks
	for len(blocks) < needed {
		block, ok := bm.Alloc()
		if !ok {
			return fmt.Errorf("saving directory: %w", OutOfSpaceErr)
		}
		blocks = append(blocks, block)
		grew = true
	}

	for i, block := range blocks {
		var chunk []byte
		if offset := i * blockSize; offset < len(data) {
			chunk = data[offset:types.Min(offset+blockSize, len(data))]
		}
		if err := s.WriteBlock(block, chunk); err != nil {
			return fmt.Errorf("saving directory: %w", err)
		}
	}

	if grew {
		if err := bm.Save(s, sb); err != nil {
			return fmt.Errorf("saving directory: %w", err)
		}
	}

	root.Blocks = blocks
	root.Size = uint64(len(data))
	root.ModifiedAt = uint64(time.Now().Unix())
	if err := table.Save(s, sb, inodes); err != nil {
		return fmt.Errorf("saving directory: %w", err)
	}
	return nil
}
