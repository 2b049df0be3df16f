package fsys

import (
	"fmt"
	"log"
	"time"

	"github.com/weberc2/qrfs/pkg/dir"
	"github.com/weberc2/qrfs/pkg/table"
	"github.com/weberc2/qrfs/pkg/types"
)

const (
	NotFoundErr    types.ConstError = "not found"
	NotDirErr      types.ConstError = "not a directory"
	IsDirErr       types.ConstError = "is a directory"
	OutOfInodesErr types.ConstError = "out of inodes"
	OutOfSpaceErr  types.ConstError = "out of space"
	FileTooBigErr  types.ConstError = "file exceeds max direct blocks"
)

// Getattr returns the inode record for a known ino.
func (fs *FileSystem) Getattr(ino types.Ino) (*types.Inode, error) {
	inode, live := fs.Inodes[ino]
	if !live {
		return nil, fmt.Errorf("stat ino `%d`: %w", ino, NotFoundErr)
	}
	return inode, nil
}

// Lookup resolves a name in the root directory. `.` and `..` resolve to the
// root itself.
func (fs *FileSystem) Lookup(name string) (*types.Inode, error) {
	if name == "." || name == ".." {
		return fs.Getattr(fs.Superblock.RootIno)
	}
	ino, found := fs.DirCache[name]
	if !found {
		return nil, fmt.Errorf("looking up `%s`: %w", name, NotFoundErr)
	}
	return fs.Getattr(ino)
}

// ListRoot returns `.`, `..`, and every cached entry.
func (fs *FileSystem) ListRoot() []types.DirEntry {
	entries := make([]types.DirEntry, 0, len(fs.DirCache)+2)
	entries = append(
		entries,
		types.DirEntry{Name: ".", Ino: fs.Superblock.RootIno, Kind: types.KindDir},
		types.DirEntry{Name: "..", Ino: fs.Superblock.RootIno, Kind: types.KindDir},
	)
	for name, ino := range fs.DirCache {
		kind := types.KindFile
		if inode, live := fs.Inodes[ino]; live {
			kind = inode.Kind
		}
		entries = append(entries, types.DirEntry{Name: name, Ino: ino, Kind: kind})
	}
	return entries
}

// Open checks that the ino exists. OpenDir additionally requires a
// directory.
func (fs *FileSystem) Open(ino types.Ino) error {
	_, err := fs.Getattr(ino)
	return err
}

func (fs *FileSystem) OpenDir(ino types.Ino) error {
	inode, err := fs.Getattr(ino)
	if err != nil {
		return err
	}
	if inode.Kind != types.KindDir {
		return fmt.Errorf("opening dir `%d`: %w", ino, NotDirErr)
	}
	return nil
}

// Create allocates the lowest free ino for a new empty file, inserts it into
// the directory cache, and persists the directory and inode table. A failed
// directory save is logged, not fatal: the inode table is the critical
// record and its save is.
func (fs *FileSystem) Create(
	name string,
	mode uint16,
) (*types.Inode, error) {
	ino, ok := table.FindFreeIno(&fs.Superblock, fs.Inodes)
	if !ok {
		return nil, fmt.Errorf("creating `%s`: %w", name, OutOfInodesErr)
	}
	inode := types.NewInode(ino, types.KindFile, mode)
	fs.Inodes[ino] = &inode
	fs.DirCache[name] = ino

	if err := fs.saveDir(); err != nil {
		log.Printf("creating `%s`: persisting directory: %v", name, err)
	}
	if err := table.Save(fs.Store, &fs.Superblock, fs.Inodes); err != nil {
		return nil, fmt.Errorf("creating `%s`: %w", name, err)
	}
	return &inode, nil
}

// Write writes into the single block containing offset, allocating data
// blocks on demand up to that block. Read-modify-write on the touched block;
// returns the byte count actually written, which the caller re-issues past a
// block boundary.
func (fs *FileSystem) Write(
	ino types.Ino,
	offset uint64,
	data []byte,
) (int, error) {
	inode, err := fs.Getattr(ino)
	if err != nil {
		return 0, err
	}
	blockSize := uint64(fs.Store.BlockSize())
	logicalIdx := offset / blockSize
	offsetInBlock := offset % blockSize

	if logicalIdx >= types.MaxDirectBlocks {
		return 0, fmt.Errorf("writing ino `%d`: %w", ino, FileTooBigErr)
	}

	// allocate any missing blocks through the touched one, persisting the
	// bitmap before the data lands in them
	grew := false
	for uint64(len(inode.Blocks)) <= logicalIdx {
		block, ok := fs.Bitmap.Alloc()
		if !ok {
			return 0, fmt.Errorf("writing ino `%d`: %w", ino, OutOfSpaceErr)
		}
		inode.Blocks = append(inode.Blocks, block)
		grew = true
	}
	if grew {
		if err := fs.Bitmap.Save(fs.Store, &fs.Superblock); err != nil {
			return 0, fmt.Errorf("writing ino `%d`: %w", ino, err)
		}
	}

	block := inode.Blocks[logicalIdx]
	p, err := fs.Store.ReadBlock(block)
	if err != nil {
		return 0, fmt.Errorf("writing ino `%d`: %w", ino, err)
	}
	n := int(types.Min(uint64(len(data)), blockSize-offsetInBlock))
	copy(p[offsetInBlock:], data[:n])
	if err := fs.Store.WriteBlock(block, p); err != nil {
		return 0, fmt.Errorf("writing ino `%d`: %w", ino, err)
	}

	if end := offset + uint64(n); end > inode.Size {
		inode.Size = end
	}
	inode.ModifiedAt = uint64(time.Now().Unix())
	if err := table.Save(fs.Store, &fs.Superblock, fs.Inodes); err != nil {
		return n, fmt.Errorf("writing ino `%d`: %w", ino, err)
	}
	return n, nil
}

// Setattr applies the requested attribute changes and persists the inode
// table. A nil field is left untouched; a call that changes nothing skips
// the table rewrite and the modified-timestamp bump. Truncating below the
// allocated block count keeps the surplus blocks; growing the size past it
// leaves a sparse tail that reads back as zeros.
func (fs *FileSystem) Setattr(
	ino types.Ino,
	mode *uint16,
	size *uint64,
) (*types.Inode, error) {
	inode, err := fs.Getattr(ino)
	if err != nil {
		return nil, err
	}
	changed := false
	if mode != nil && *mode != inode.Mode {
		inode.Mode = *mode
		changed = true
	}
	if size != nil && *size != inode.Size {
		inode.Size = *size
		changed = true
	}
	if !changed {
		return inode, nil
	}
	inode.ModifiedAt = uint64(time.Now().Unix())
	if err := table.Save(fs.Store, &fs.Superblock, fs.Inodes); err != nil {
		return nil, fmt.Errorf("setting attrs on ino `%d`: %w", ino, err)
	}
	return inode, nil
}

// Read returns up to size bytes from offset. Reads past the file's end
// return empty; a logical block with no allocated backing (sparse tail)
// reads as zeros.
func (fs *FileSystem) Read(
	ino types.Ino,
	offset uint64,
	size uint32,
) ([]byte, error) {
	inode, err := fs.Getattr(ino)
	if err != nil {
		return nil, err
	}
	if offset >= inode.Size {
		return nil, nil
	}
	blockSize := uint64(fs.Store.BlockSize())
	end := types.Min(inode.Size, offset+uint64(size))
	out := make([]byte, 0, end-offset)

	for cursor := offset; cursor < end; {
		logicalIdx := cursor / blockSize
		offsetInBlock := cursor % blockSize
		n := types.Min(end-cursor, blockSize-offsetInBlock)

		if logicalIdx < uint64(len(inode.Blocks)) {
			p, err := fs.Store.ReadBlock(inode.Blocks[logicalIdx])
			if err != nil {
				return nil, fmt.Errorf("reading ino `%d`: %w", ino, err)
			}
			out = append(out, p[offsetInBlock:offsetInBlock+n]...)
		} else {
			// size claims more than is allocated; zero-fill the gap
			out = append(out, make([]byte, n)...)
		}
		cursor += n
	}
	return out, nil
}

// Rename re-keys the cache entry and persists the directory.
func (fs *FileSystem) Rename(oldName, newName string) error {
	ino, found := fs.DirCache[oldName]
	if !found {
		return fmt.Errorf(
			"renaming `%s` to `%s`: %w",
			oldName,
			newName,
			NotFoundErr,
		)
	}
	delete(fs.DirCache, oldName)
	fs.DirCache[newName] = ino
	if err := fs.saveDir(); err != nil {
		return fmt.Errorf("renaming `%s` to `%s`: %w", oldName, newName, err)
	}
	return nil
}

// Unlink removes a file: its blocks are freed in the bitmap, the inode and
// cache entry are dropped, and directory, bitmap, and inode table are
// persisted in that order.
func (fs *FileSystem) Unlink(name string) error {
	return fs.remove(name, types.KindFile)
}

// Rmdir removes a directory entry. Like unlink it frees the inode's blocks;
// the earliest behavior only dropped the record, which leaked blocks that
// fsck then reported as orphans.
func (fs *FileSystem) Rmdir(name string) error {
	return fs.remove(name, types.KindDir)
}

func (fs *FileSystem) remove(name string, kind types.InodeKind) error {
	ino, found := fs.DirCache[name]
	if !found {
		return fmt.Errorf("removing `%s`: %w", name, NotFoundErr)
	}
	inode, live := fs.Inodes[ino]
	if !live {
		// in the cache but not the table; repair the cache
		delete(fs.DirCache, name)
		return fmt.Errorf("removing `%s`: %w", name, NotFoundErr)
	}
	if inode.Kind != kind {
		if kind == types.KindDir {
			return fmt.Errorf("removing `%s`: %w", name, NotDirErr)
		}
		return fmt.Errorf("removing `%s`: %w", name, IsDirErr)
	}

	for _, block := range inode.Blocks {
		fs.Bitmap.Free(block)
	}
	delete(fs.Inodes, ino)
	delete(fs.DirCache, name)

	if err := fs.saveDir(); err != nil {
		log.Printf("removing `%s`: persisting directory: %v", name, err)
	}
	if err := fs.Bitmap.Save(fs.Store, &fs.Superblock); err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}
	if err := table.Save(fs.Store, &fs.Superblock, fs.Inodes); err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}
	return nil
}

// Stats is the statfs result: block and inode totals derived by scanning the
// bitmap and counting live table entries.
type Stats struct {
	TotalBlocks types.Block
	FreeBlocks  types.Block
	TotalInodes types.Ino
	FreeInodes  types.Ino
	BlockSize   uint32
	NameLen     uint32
}

func (fs *FileSystem) Statfs() Stats {
	return Stats{
		TotalBlocks: fs.Superblock.TotalBlocks,
		FreeBlocks:  fs.Bitmap.FreeCount(),
		TotalInodes: fs.Superblock.InodeCount,
		FreeInodes:  fs.Superblock.InodeCount - types.Ino(len(fs.Inodes)),
		BlockSize:   fs.Superblock.BlockSize,
		NameLen:     types.MaxNameLen,
	}
}

func (fs *FileSystem) saveDir() error {
	return dir.Save(fs.Store, &fs.Superblock, fs.Bitmap, fs.Inodes, fs.DirCache)
}
