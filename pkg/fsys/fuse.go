package fsys

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	"github.com/weberc2/qrfs/pkg/dir"
	"github.com/weberc2/qrfs/pkg/types"
)

// Serve mounts the filesystem at mountpoint and blocks until it is
// unmounted. All kernel requests funnel through one mutex; the driver
// beneath is strictly single-writer.
func Serve(filesystem *FileSystem, mountpoint string) error {
	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("qrfs"),
		fuse.Subtype("qrfs"),
	)
	if err != nil {
		return err
	}
	defer c.Close()
	return fusefs.Serve(c, &fuseFS{fs: filesystem, mu: new(sync.Mutex)})
}

type fuseFS struct {
	fs *FileSystem
	mu *sync.Mutex
}

func (f *fuseFS) Root() (fusefs.Node, error) {
	return &fuseDir{fs: f.fs, mu: f.mu, ino: f.fs.Superblock.RootIno}, nil
}

func (f *fuseFS) Statfs(
	ctx context.Context,
	req *fuse.StatfsRequest,
	resp *fuse.StatfsResponse,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.fs.Statfs()
	resp.Blocks = uint64(stats.TotalBlocks)
	resp.Bfree = uint64(stats.FreeBlocks)
	resp.Bavail = uint64(stats.FreeBlocks)
	resp.Files = uint64(stats.TotalInodes)
	resp.Ffree = uint64(stats.FreeInodes)
	resp.Bsize = stats.BlockSize
	resp.Namelen = stats.NameLen
	return nil
}

type fuseDir struct {
	fs  *FileSystem
	mu  *sync.Mutex
	ino types.Ino
}

func (d *fuseDir) Attr(ctx context.Context, a *fuse.Attr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inode, err := d.fs.Getattr(d.ino)
	if err != nil {
		return errnoFor(err)
	}
	fillAttr(a, inode, protoIno(d.ino, d.fs.Superblock.RootIno))
	return nil
}

func (d *fuseDir) Lookup(
	ctx context.Context,
	name string,
) (fusefs.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inode, err := d.fs.Lookup(name)
	if err != nil {
		return nil, errnoFor(err)
	}
	if inode.Kind == types.KindDir {
		return &fuseDir{fs: d.fs, mu: d.mu, ino: inode.Ino}, nil
	}
	return &fuseFile{fs: d.fs, mu: d.mu, ino: inode.Ino}, nil
}

func (d *fuseDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := d.fs.ListRoot()
	result := make([]fuse.Dirent, 0, len(entries))
	for _, entry := range entries {
		typ := fuse.DT_File
		if entry.Kind == types.KindDir {
			typ = fuse.DT_Dir
		}
		result = append(result, fuse.Dirent{
			Inode: protoIno(entry.Ino, d.fs.Superblock.RootIno),
			Type:  typ,
			Name:  entry.Name,
		})
	}
	return result, nil
}

func (d *fuseDir) Create(
	ctx context.Context,
	req *fuse.CreateRequest,
	resp *fuse.CreateResponse,
) (fusefs.Node, fusefs.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inode, err := d.fs.Create(req.Name, uint16(req.Mode.Perm()))
	if err != nil {
		return nil, nil, errnoFor(err)
	}
	resp.Node = fuse.NodeID(protoIno(inode.Ino, d.fs.Superblock.RootIno))
	fillAttr(&resp.Attr, inode, protoIno(inode.Ino, d.fs.Superblock.RootIno))
	file := &fuseFile{fs: d.fs, mu: d.mu, ino: inode.Ino}
	return file, file, nil
}

func (d *fuseDir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if req.Dir {
		return errnoFor(d.fs.Rmdir(req.Name))
	}
	return errnoFor(d.fs.Unlink(req.Name))
}

func (d *fuseDir) Rename(
	ctx context.Context,
	req *fuse.RenameRequest,
	newDir fusefs.Node,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errnoFor(d.fs.Rename(req.OldName, req.NewName))
}

type fuseFile struct {
	fs  *FileSystem
	mu  *sync.Mutex
	ino types.Ino
}

func (f *fuseFile) Attr(ctx context.Context, a *fuse.Attr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inode, err := f.fs.Getattr(f.ino)
	if err != nil {
		return errnoFor(err)
	}
	fillAttr(a, inode, protoIno(f.ino, f.fs.Superblock.RootIno))
	return nil
}

func (f *fuseFile) Open(
	ctx context.Context,
	req *fuse.OpenRequest,
	resp *fuse.OpenResponse,
) (fusefs.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.Open(f.ino); err != nil {
		return nil, errnoFor(err)
	}
	return f, nil
}

func (f *fuseFile) Read(
	ctx context.Context,
	req *fuse.ReadRequest,
	resp *fuse.ReadResponse,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.fs.Read(f.ino, uint64(req.Offset), uint32(req.Size))
	if err != nil {
		return errnoFor(err)
	}
	resp.Data = data
	return nil
}

func (f *fuseFile) Write(
	ctx context.Context,
	req *fuse.WriteRequest,
	resp *fuse.WriteResponse,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// the driver writes at most one block per call; loop until the whole
	// request has landed
	written := 0
	for written < len(req.Data) {
		n, err := f.fs.Write(
			f.ino,
			uint64(req.Offset)+uint64(written),
			req.Data[written:],
		)
		if err != nil {
			return errnoFor(err)
		}
		written += n
	}
	resp.Size = written
	return nil
}

func (f *fuseFile) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	// every mutation is written through as it happens
	return nil
}

func (f *fuseFile) Setattr(
	ctx context.Context,
	req *fuse.SetattrRequest,
	resp *fuse.SetattrResponse,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mode *uint16
	var size *uint64
	if req.Valid.Mode() {
		m := uint16(req.Mode.Perm())
		mode = &m
	}
	if req.Valid.Size() {
		s := req.Size
		size = &s
	}
	inode, err := f.fs.Setattr(f.ino, mode, size)
	if err != nil {
		return errnoFor(err)
	}
	fillAttr(&resp.Attr, inode, protoIno(f.ino, f.fs.Superblock.RootIno))
	return nil
}

// protoIno maps the on-disk root ino onto the mount protocol's ino 1;
// everything else passes through.
func protoIno(ino, root types.Ino) uint64 {
	if ino == root {
		return 1
	}
	return uint64(ino)
}

func fillAttr(a *fuse.Attr, inode *types.Inode, ino uint64) {
	a.Inode = ino
	a.Size = inode.Size
	a.Ctime = time.Unix(int64(inode.CreatedAt), 0)
	a.Mtime = time.Unix(int64(inode.ModifiedAt), 0)
	a.Nlink = 1
	a.Mode = os.FileMode(inode.Mode)
	if inode.Kind == types.KindDir {
		a.Mode |= os.ModeDir
		a.Nlink = 2
	}
}

func errnoFor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, NotFoundErr):
		return fuse.ENOENT
	case errors.Is(err, NotDirErr):
		return fuse.Errno(syscall.ENOTDIR)
	case errors.Is(err, IsDirErr):
		return fuse.Errno(syscall.EISDIR)
	case errors.Is(err, OutOfSpaceErr),
		errors.Is(err, dir.OutOfSpaceErr),
		errors.Is(err, OutOfInodesErr):
		return fuse.Errno(syscall.ENOSPC)
	case errors.Is(err, FileTooBigErr):
		return fuse.Errno(syscall.EFBIG)
	default:
		return fuse.Errno(syscall.EIO)
	}
}
