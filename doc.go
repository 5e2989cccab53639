// Package streamkit provides a uniform abstraction over sequential and
// random-access byte streams, with in-memory and file-backed backends and
// generic helpers that work on any of them.
//
// streamkit follows interface segregation principles: every capability
// ([Reader], [Writer], [Seeker], [Sizer], [Closer], [Truncater], [Flusher])
// is its own interface, and the first four are the io interfaces themselves,
// so every stream also works with the standard library. A stream's actual
// capabilities can depend on how it was opened; use [Capabilities] or the
// As* accessors instead of bare type assertions:
//
//	if w, err := streamkit.AsWriter(s); err == nil {
//	    _, err = streamkit.WriteAll(w, data)
//	}
//
// # Backends
//
//   - In-memory (github.com/gobeaver/streamkit/driver/memory): growable,
//     size-capped, fixed caller-owned and read-only buffers.
//   - Local files (github.com/gobeaver/streamkit/driver/local): positional
//     reads and writes with lazy seeking, and an optional memory-mapped
//     window over the file.
//
// # Basic Usage
//
//	import "github.com/gobeaver/streamkit/driver/local"
//
//	f, err := local.Open("data.bin", local.CreateOrTruncate)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	// Write, rewind and read back
//	_, err = streamkit.WriteAll(f, []byte("hello world"))
//	_, err = f.Seek(0, io.SeekStart)
//	data, err := streamkit.ReadAll(f)
//
// # End of Stream
//
// Reading at or past the end returns 0, io.EOF. io.EOF is not a failure; the
// helpers treat it as normal termination and never return it.
//
// # Memory Mapping
//
// A local stream can map a range of its file and serve reads and writes in
// that range from memory. Everything outside the range keeps using the
// positional path, so mapping never changes what a caller observes:
//
//	f, _ := local.Open("index.db", local.ReadWrite)
//	if err := f.EnableMapping(0, 0); err != nil { // 0 length maps to EOF
//	    log.Fatal(err)
//	}
//	page := f.MappedBytes()
//
// Build with the streamkit_nommap tag to compile mapping out; EnableMapping
// then fails with [ErrUnsupportedOperation].
//
// # Helpers
//
//   - [CopyStream], [ReadAll], [WriteAll], [Skip]
//   - [Window] bounded views over part of a stream
//   - [NewBufferedReader], [NewBufferedWriter]
//   - [NewBinaryReader], [NewBinaryWriter] fixed-size values in a byte order
//   - [ReadOnly], [Restrict] narrowed capability sets
//   - [Checksum], [Checksums] digests over a stream
//
// # Error Handling
//
// Every failure is a [*Error] carrying the operation, the path (for files),
// a kind sentinel and the OS cause:
//
//	_, err := f.Seek(-1, io.SeekStart)
//	if errors.Is(err, streamkit.ErrInvalidSeek) {
//	    // bad target
//	}
//
// Kind sentinels: [ErrOpenFailed], [ErrUnsupportedOperation],
// [ErrInvalidSeek], [ErrUnsupportedExtension], [ErrClosed],
// [ErrMappingAlreadyActive], [ErrMappingActive], [ErrStaleMapping],
// [ErrInvalidRange], [ErrIOFailure].
//
// # Configuration
//
// [GetConfig] loads defaults from the environment using the STREAMKIT_ keys
// (with the BEAVER_ prefix), see [Config].
package streamkit
