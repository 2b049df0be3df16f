package types

import (
	"errors"
	"reflect"
	"testing"
)

func TestInodeRoundTrip(t *testing.T) {
	inode := Inode{
		Ino:        7,
		Kind:       KindFile,
		Mode:       0o644,
		Size:       1234,
		CreatedAt:  1700000000,
		ModifiedAt: 1700000001,
		Blocks:     []Block{18, 19, 25},
	}
	var buf [InodeRecordSize]byte
	if err := EncodeInode(&inode, &buf); err != nil {
		t.Fatalf("EncodeInode(): unexpected err: %v", err)
	}
	var decoded Inode
	if err := DecodeInode(&decoded, buf[:]); err != nil {
		t.Fatalf("DecodeInode(): unexpected err: %v", err)
	}
	if !reflect.DeepEqual(inode, decoded) {
		t.Fatalf("wanted `%+v`; found `%+v`", inode, decoded)
	}
}

func TestEncodeInodeTooManyBlocks(t *testing.T) {
	inode := NewInode(2, KindFile, 0o644)
	inode.Blocks = make([]Block, MaxDirectBlocks+1)
	var buf [InodeRecordSize]byte
	if err := EncodeInode(&inode, &buf); !errors.Is(err, TooManyBlocksErr) {
		t.Fatalf("wanted `%v`; found `%v`", TooManyBlocksErr, err)
	}
}

func TestInodeValidate(t *testing.T) {
	sb := DeriveLayout(128, 64, DefaultBlockSize)
	for _, testCase := range []struct {
		name   string
		mutate func(*Inode)
		wanted error
	}{
		{"valid", func(*Inode) {}, nil},
		{
			"reserved block",
			func(inode *Inode) { inode.Blocks = []Block{1} },
			BlockReservedErr,
		},
		{
			"out of range block",
			func(inode *Inode) { inode.Blocks = []Block{128} },
			BlockOutOfRangeErr,
		},
		{
			"backwards timestamps",
			func(inode *Inode) { inode.ModifiedAt = inode.CreatedAt - 1 },
			BadTimestampsErr,
		},
		{
			"zero created-at",
			func(inode *Inode) { inode.CreatedAt = 0 },
			BadTimestampsErr,
		},
		{
			"ino out of range",
			func(inode *Inode) { inode.Ino = 64 },
			InoOutOfRangeErr,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			inode := NewInode(2, KindFile, 0o644)
			inode.Blocks = []Block{sb.DataStart}
			testCase.mutate(&inode)
			if err := inode.Validate(&sb); !errors.Is(err, testCase.wanted) {
				t.Fatalf("wanted `%v`; found `%v`", testCase.wanted, err)
			}
		})
	}
}

func TestDirEntriesRoundTrip(t *testing.T) {
	entries := []DirEntry{
		{Name: ".", Ino: InoRoot, Kind: KindDir},
		{Name: "..", Ino: InoRoot, Kind: KindDir},
		{Name: "a.txt", Ino: 2, Kind: KindFile},
		{Name: "b", Ino: 3, Kind: KindDir},
	}
	p, err := EncodeDirEntries(entries)
	if err != nil {
		t.Fatalf("EncodeDirEntries(): unexpected err: %v", err)
	}
	decoded, err := DecodeDirEntries(p)
	if err != nil {
		t.Fatalf("DecodeDirEntries(): unexpected err: %v", err)
	}
	if !reflect.DeepEqual(entries, decoded) {
		t.Fatalf("wanted `%+v`; found `%+v`", entries, decoded)
	}
}

func TestDecodeDirEntriesEmpty(t *testing.T) {
	entries, err := DecodeDirEntries(nil)
	if err != nil {
		t.Fatalf("DecodeDirEntries(nil): unexpected err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("wanted no entries; found `%d`", len(entries))
	}
}

func TestDecodeDirEntriesHugeCount(t *testing.T) {
	// a corrupt header claiming ~4 billion entries must fail on the
	// truncation check, not pre-allocate for the claimed count
	p := []byte{0xff, 0xff, 0xff, 0xff}
	if _, err := DecodeDirEntries(p); !errors.Is(
		err,
		TruncatedRecordErr,
	) {
		t.Fatalf("wanted `%v`; found `%v`", TruncatedRecordErr, err)
	}
}

func TestDecodeDirEntriesTruncated(t *testing.T) {
	entries := []DirEntry{{Name: "a.txt", Ino: 2, Kind: KindFile}}
	p, err := EncodeDirEntries(entries)
	if err != nil {
		t.Fatalf("EncodeDirEntries(): unexpected err: %v", err)
	}
	if _, err := DecodeDirEntries(p[:len(p)-2]); !errors.Is(
		err,
		TruncatedRecordErr,
	) {
		t.Fatalf("wanted `%v`; found `%v`", TruncatedRecordErr, err)
	}
}
