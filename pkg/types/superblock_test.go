package types

import (
	"errors"
	"testing"
)

func TestBitmapBytes(t *testing.T) {
	for _, testCase := range []struct {
		blocks Block
		wanted uint32
	}{
		{0, 0},
		{1, 1},
		{8, 1},
		{9, 2},
		{128, 16},
		{4097, 513},
	} {
		if found := BitmapBytes(testCase.blocks); found != testCase.wanted {
			t.Fatalf(
				"BitmapBytes(%d): wanted `%d`; found `%d`",
				testCase.blocks,
				testCase.wanted,
				found,
			)
		}
	}
}

func TestDeriveLayout(t *testing.T) {
	for _, testCase := range []struct {
		name        string
		totalBlocks Block
		inodeCount  Ino
	}{
		{"small", 128, 64},
		{"large", 4096, 256},
		{"tight", 64, 16},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			sb := DeriveLayout(
				testCase.totalBlocks,
				testCase.inodeCount,
				DefaultBlockSize,
			)
			if err := sb.Validate(); err != nil {
				t.Fatalf("Validate(): unexpected err: %v", err)
			}
			if sb.FreeMapStart != 1 {
				t.Fatalf(
					"FreeMapStart: wanted `1`; found `%d`",
					sb.FreeMapStart,
				)
			}
			if sb.InodeTableStart != sb.FreeMapStart+sb.FreeMapBlocks {
				t.Fatalf(
					"InodeTableStart: wanted `%d`; found `%d`",
					sb.FreeMapStart+sb.FreeMapBlocks,
					sb.InodeTableStart,
				)
			}
			if sb.DataStart != sb.InodeTableStart+sb.InodeTableBlocks {
				t.Fatalf(
					"DataStart: wanted `%d`; found `%d`",
					sb.InodeTableStart+sb.InodeTableBlocks,
					sb.DataStart,
				)
			}
			if sb.DataStart >= sb.TotalBlocks {
				t.Fatalf(
					"DataStart `%d` not below TotalBlocks `%d`",
					sb.DataStart,
					sb.TotalBlocks,
				)
			}
			wantedTableBlocks := Block(DivCeil(
				uint32(testCase.inodeCount)*InodeRecordSize,
				DefaultBlockSize,
			))
			if sb.InodeTableBlocks != wantedTableBlocks {
				t.Fatalf(
					"InodeTableBlocks: wanted `%d`; found `%d`",
					wantedTableBlocks,
					sb.InodeTableBlocks,
				)
			}
		})
	}
}

func TestDeriveLayoutIsDeterministic(t *testing.T) {
	a := DeriveLayout(128, 64, DefaultBlockSize)
	b := DeriveLayout(128, 64, DefaultBlockSize)
	b.VolumeID = a.VolumeID // only the volume id may differ
	if a != b {
		t.Fatalf("wanted identical layouts; found `%+v` and `%+v`", a, b)
	}
}

func TestValidateDegenerateLayout(t *testing.T) {
	// 8 blocks can't hold a 64-inode table
	sb := DeriveLayout(8, 64, DefaultBlockSize)
	if err := sb.Validate(); !errors.Is(err, LayoutOverflowErr) {
		t.Fatalf("wanted `%v`; found `%v`", LayoutOverflowErr, err)
	}
}

func TestSuperblockRoundTrip(t *testing.T) {
	sb := DeriveLayout(128, 64, DefaultBlockSize)
	var buf [SuperblockSize]byte
	EncodeSuperblock(&sb, &buf)
	var decoded Superblock
	if err := DecodeSuperblock(&decoded, buf[:]); err != nil {
		t.Fatalf("DecodeSuperblock(): unexpected err: %v", err)
	}
	if decoded != sb {
		t.Fatalf("wanted `%+v`; found `%+v`", sb, decoded)
	}
}

func TestDecodeSuperblockBadMagic(t *testing.T) {
	sb := DeriveLayout(128, 64, DefaultBlockSize)
	var buf [SuperblockSize]byte
	EncodeSuperblock(&sb, &buf)
	buf[0] ^= 0xFF
	var decoded Superblock
	if err := DecodeSuperblock(&decoded, buf[:]); !errors.Is(
		err,
		BadMagicErr,
	) {
		t.Fatalf("wanted `%v`; found `%v`", BadMagicErr, err)
	}
}
