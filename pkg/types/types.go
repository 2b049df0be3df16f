package types

// Block is the identifier of a physical block: one persisted QR image.
type Block uint32

// Ino identifies an inode record in the fixed on-disk inode table.
type Ino uint32

const (
	// Magic spells "QRFS" in ASCII.
	Magic uint32 = 0x51524653

	// Version is the current format version. Version 1 volumes carried
	// bare-base64 QR payloads; version 2 wraps payloads in a JSON envelope.
	// The block codec reads both; new volumes are written as version 2.
	Version uint32 = 2

	DefaultBlockSize uint32 = 512

	// MaxBlockSize is the largest block size Validate accepts. Tools that
	// probe an unknown volume's superblock size their probe reads with it.
	MaxBlockSize = 1024

	// InodeRecordSize is the fixed size of one serialized inode record.
	// The inode table is a gap-free array of exactly InodeCount records.
	InodeRecordSize uint32 = 128

	// MaxDirectBlocks is the number of direct block pointers that fit in
	// one inode record. There is no indirection; this caps file size at
	// MaxDirectBlocks*BlockSize bytes.
	MaxDirectBlocks = 23

	MaxNameLen = 255

	// InoRoot is the root directory's inode. InoFirst is the first ino the
	// driver will hand out; ino 1 is reserved as the mount protocol's alias
	// for the root.
	InoRoot  Ino = 0
	InoFirst Ino = 2
)
