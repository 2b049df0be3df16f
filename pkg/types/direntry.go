package types

// DirEntry maps a name to an inode in the root directory. Kind duplicates the
// inode's kind so listings don't need a second table lookup.
type DirEntry struct {
	Name string
	Ino  Ino
	Kind InodeKind
}
