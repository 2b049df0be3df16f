package types

// ConstError is an error that can be declared as a constant.
type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	BadMagicErr        ConstError = "bad magic number"
	BadVersionErr      ConstError = "unsupported format version"
	BadBlockSizeErr    ConstError = "invalid block size"
	LayoutOverlapErr   ConstError = "on-disk regions overlap"
	LayoutOverflowErr  ConstError = "data region starts past the end of the volume"
	TruncatedRecordErr ConstError = "truncated record"
	TooManyBlocksErr   ConstError = "too many direct blocks"
	NameTooLongErr     ConstError = "file name too long"
	InoOutOfRangeErr   ConstError = "ino out of range"
	BlockReservedErr   ConstError = "block in reserved region"
	BlockOutOfRangeErr ConstError = "block out of range"
	BadTimestampsErr   ConstError = "modified-at precedes created-at"
)
