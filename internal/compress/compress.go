package compress

import (
	"errors"
	"fmt"
)

var ErrUnknownCompression = errors.New("unknown compression")

// Compress encodes version content before it is stored and decodes it on the
// way out. Name is recorded with every version so old rows stay readable
// after the configured codec changes.
type Compress interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

const (
	NopName    = "none"
	GZipName   = "gzip"
	BrotliName = "brotli"
	LZ4Name    = "lz4"
)

// Lookup returns the codec registered under name. An empty name is treated
// as "none".
func Lookup(name string) (Compress, error) {
	switch name {
	case "", NopName:
		return NewNop(), nil
	case GZipName:
		return NewGZip(), nil
	case BrotliName:
		return NewBrotli(), nil
	case LZ4Name:
		return NewLZ4(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}
