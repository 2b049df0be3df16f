package store

import (
	"fmt"

	"github.com/weberc2/qrfs/pkg/types"
)

const RegionOverflowErr types.ConstError = "data exceeds region size"

// ReadRegion reads and concatenates the blocks `[start, start+count)`. The
// reserved metadata regions (free map, inode table) are loaded this way.
func ReadRegion(s BlockStore, start, count types.Block) ([]byte, error) {
	out := make([]byte, 0, int(count)*s.BlockSize())
	for i := types.Block(0); i < count; i++ {
		block, err := s.ReadBlock(start + i)
		if err != nil {
			return nil, fmt.Errorf(
				"reading region at `%d`: %w",
				start,
				err,
			)
		}
		out = append(out, block...)
	}
	return out, nil
}

// WriteRegion spreads data across the blocks `[start, start+count)`,
// zero-padding the tail. Every block in the region is rewritten so stale
// bytes can't survive a shrinking payload.
func WriteRegion(s BlockStore, start, count types.Block, data []byte) error {
	blockSize := s.BlockSize()
	if len(data) > int(count)*blockSize {
		return fmt.Errorf(
			"writing region at `%d`: `%d` bytes into `%d` blocks: %w",
			start,
			len(data),
			count,
			RegionOverflowErr,
		)
	}
	for i := types.Block(0); i < count; i++ {
		var chunk []byte
		if offset := int(i) * blockSize; offset < len(data) {
			chunk = data[offset:types.Min(offset+blockSize, len(data))]
		}
		if err := s.WriteBlock(start+i, chunk); err != nil {
			return fmt.Errorf("writing region at `%d`: %w", start, err)
		}
	}
	return nil
}
