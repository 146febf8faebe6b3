package types

import "errors"

var (
	// ErrDecode means the image content is malformed or cannot be decoded.
	ErrDecode = errors.New("imgdiff: cannot decode image")
	// ErrFormat means a raw binary container does not match its declared size.
	ErrFormat = errors.New("imgdiff: malformed raw container")
	// ErrIO means reading or writing a file failed.
	ErrIO = errors.New("imgdiff: i/o error")
	// ErrInvalidArgument means a caller supplied value is not acceptable, for
	// example an unknown metric name or mismatched image shapes.
	ErrInvalidArgument = errors.New("imgdiff: invalid argument")
	// ErrUnsupportedFormat means the given image format is not supported.
	ErrUnsupportedFormat = errors.New("imgdiff: unsupported image format")
)
