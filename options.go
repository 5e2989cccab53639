package streamkit

// DefaultCopyBufferSize is the chunk size CopyStream uses when none is given.
const DefaultCopyBufferSize = 64 * 1024

// ProgressFunc is called after each chunk a helper moves. total is -1 when
// the source size is unknown.
type ProgressFunc func(bytesTransferred int64, totalBytes int64)

// CopyOption represents a configuration option for CopyStream
type CopyOption func(*CopyOptions)

// CopyOptions contains all possible options for CopyStream
type CopyOptions struct {
	// BufferSize is the maximum number of bytes moved per Read/Write pair.
	// Values <= 0 select DefaultCopyBufferSize.
	BufferSize int

	// Progress is invoked after every chunk written to the destination
	Progress ProgressFunc

	// Limit stops the copy after this many bytes. Zero means no limit.
	Limit int64
}

// WithBufferSize sets the chunk size
func WithBufferSize(size int) CopyOption {
	return func(o *CopyOptions) {
		o.BufferSize = size
	}
}

// WithProgress sets a progress callback
func WithProgress(fn ProgressFunc) CopyOption {
	return func(o *CopyOptions) {
		o.Progress = fn
	}
}

// WithLimit caps the number of bytes copied
func WithLimit(n int64) CopyOption {
	return func(o *CopyOptions) {
		o.Limit = n
	}
}

func processCopyOptions(opts ...CopyOption) *CopyOptions {
	o := &CopyOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultCopyBufferSize
	}
	return o
}
