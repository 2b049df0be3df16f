// Package check is the offline consistency checker. It reads a volume's
// metadata directly from the block store, without mounting, and re-derives
// the invariants the driver relies on: a decodable superblock, sane region
// boundaries, a readable bitmap, valid inode records, a directory root, and
// agreement between the bitmap and the set of blocks inodes reference.
//
// Findings come in two severities. An orphan (bitmap says used, no inode
// references it) leaks space but leaves the volume usable. A missing block
// (an inode references it, bitmap says free) means the allocator may hand
// the block to a second file; the volume is unsafe to mount.
package check

import (
	"fmt"

	"github.com/weberc2/qrfs/pkg/alloc"
	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/table"
	"github.com/weberc2/qrfs/pkg/types"
)

const passCount = 6

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "CRITICAL"
	}
	return "WARNING"
}

type Finding struct {
	Severity Severity
	Message  string
}

// Report is the outcome of a full run. Clean() means no findings at all;
// Critical() means at least one finding that makes the volume unsafe.
type Report struct {
	Findings    []Finding
	UsedBlocks  types.Block
	FreeBlocks  types.Block
	LiveInodes  int
	Orphans     []types.Block
	Missing     []types.Block
	VolumeID    string
	TotalBlocks types.Block
}

func (r *Report) Clean() bool { return len(r.Findings) == 0 }

func (r *Report) Critical() bool {
	for i := range r.Findings {
		if r.Findings[i].Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func (r *Report) warn(format string, v ...interface{}) {
	r.Findings = append(r.Findings, Finding{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf(format, v...),
	})
}

func (r *Report) critical(format string, v ...interface{}) {
	r.Findings = append(r.Findings, Finding{
		Severity: SeverityCritical,
		Message:  fmt.Sprintf(format, v...),
	})
}

type Checker struct {
	Store store.BlockStore

	// Logf receives the per-pass progress trace; nil disables it.
	Logf func(format string, v ...interface{})
}

func (c *Checker) logf(format string, v ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, v...)
	}
}

// Run executes all six passes. Passes after the first two are skipped if the
// superblock itself is unusable, since everything downstream depends on it.
func (c *Checker) Run() *Report {
	report := new(Report)

	c.logf("[1/%d] checking superblock", passCount)
	sb := c.checkSuperblock(report)
	if sb == nil {
		return report
	}
	report.VolumeID = sb.VolumeID.String()
	report.TotalBlocks = sb.TotalBlocks

	c.logf("[2/%d] checking region layout", passCount)
	if !c.checkLayout(report, sb) {
		return report
	}

	c.logf("[3/%d] checking free-space bitmap", passCount)
	bm := c.checkBitmap(report, sb)

	c.logf("[4/%d] checking inode records", passCount)
	inodes := c.checkInodes(report, sb)

	c.logf("[5/%d] checking root directory inode", passCount)
	c.checkRoot(report, sb, inodes)

	c.logf("[6/%d] cross-checking bitmap against inode references", passCount)
	if bm != nil && inodes != nil {
		c.crossCheck(report, sb, bm, inodes)
	}

	return report
}

func (c *Checker) checkSuperblock(report *Report) *types.Superblock {
	p, err := c.Store.ReadBlock(0)
	if err != nil {
		report.critical("reading block 0: %v", err)
		return nil
	}
	var sb types.Superblock
	if err := types.DecodeSuperblock(&sb, p); err != nil {
		report.critical("decoding superblock: %v", err)
		return nil
	}
	return &sb
}

func (c *Checker) checkLayout(report *Report, sb *types.Superblock) bool {
	if err := sb.Validate(); err != nil {
		report.critical("validating layout: %v", err)
		return false
	}
	if sb.TotalBlocks != c.Store.TotalBlocks() {
		report.critical(
			"superblock claims `%d` blocks; store holds `%d`",
			sb.TotalBlocks,
			c.Store.TotalBlocks(),
		)
		return false
	}
	if int(sb.BlockSize) != c.Store.BlockSize() {
		report.critical(
			"superblock claims `%d`-byte blocks; store uses `%d`",
			sb.BlockSize,
			c.Store.BlockSize(),
		)
		return false
	}
	return true
}

func (c *Checker) checkBitmap(
	report *Report,
	sb *types.Superblock,
) *alloc.Bitmap {
	bm, err := alloc.Load(c.Store, sb)
	if err != nil {
		report.critical("loading bitmap: %v", err)
		return nil
	}
	report.UsedBlocks = bm.UsedCount()
	report.FreeBlocks = bm.FreeCount()

	for id := types.Block(0); id < sb.DataStart; id++ {
		if !bm.IsSet(id) {
			report.critical(
				"reserved block `%d` is marked free in the bitmap",
				id,
			)
		}
	}
	return bm
}

func (c *Checker) checkInodes(
	report *Report,
	sb *types.Superblock,
) map[types.Ino]*types.Inode {
	inodes, err := table.Load(c.Store, sb)
	if err != nil {
		report.critical("loading inode table: %v", err)
		return nil
	}
	report.LiveInodes = len(inodes)

	for _, inode := range inodes {
		if err := inode.Validate(sb); err != nil {
			report.critical("inode `%d`: %v", inode.Ino, err)
		}
	}
	return inodes
}

func (c *Checker) checkRoot(
	report *Report,
	sb *types.Superblock,
	inodes map[types.Ino]*types.Inode,
) {
	if inodes == nil {
		return
	}
	root, live := inodes[sb.RootIno]
	if !live {
		report.critical("root inode `%d` is missing", sb.RootIno)
		return
	}
	if root.Kind != types.KindDir {
		report.critical(
			"root inode `%d` is a `%s`, not a directory",
			sb.RootIno,
			root.Kind,
		)
	}
}

func (c *Checker) crossCheck(
	report *Report,
	sb *types.Superblock,
	bm *alloc.Bitmap,
	inodes map[types.Ino]*types.Inode,
) {
	referenced := make(map[types.Block]bool)
	for _, inode := range inodes {
		for _, block := range inode.Blocks {
			referenced[block] = true
		}
	}

	for id := sb.DataStart; id < sb.TotalBlocks; id++ {
		switch {
		case bm.IsSet(id) && !referenced[id]:
			report.Orphans = append(report.Orphans, id)
		case !bm.IsSet(id) && referenced[id]:
			report.Missing = append(report.Missing, id)
		}
	}

	if len(report.Orphans) > 0 {
		report.warn(
			"%d orphaned block(s) marked used but unreferenced: %s",
			len(report.Orphans),
			summarizeBlocks(report.Orphans),
		)
	}
	if len(report.Missing) > 0 {
		report.critical(
			"%d block(s) referenced by inodes but marked free: %s",
			len(report.Missing),
			summarizeBlocks(report.Missing),
		)
	}
}

// summarizeBlocks lists at most the first five ids.
func summarizeBlocks(blocks []types.Block) string {
	const limit = 5
	s := ""
	for i, id := range blocks {
		if i == limit {
			return fmt.Sprintf("%s, ...", s)
		}
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", id)
	}
	return s
}
