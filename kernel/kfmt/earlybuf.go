package kfmt

import "io"

// earlyBufferSize is how much pre-console output the kernel retains. Must
// be a power of two: wrap-around is done with a mask. 4 KiB comfortably
// holds whatever is logged before Kmain attaches the console.
const earlyBufferSize = 4096

// earlyBuffer retains the most recent earlyBufferSize bytes written to it,
// discarding the oldest output once full. SetOutputSink drains it into the
// console the moment one is attached, so bring-up messages are not lost.
type earlyBuffer struct {
	data  [earlyBufferSize]byte
	start int // index of the oldest retained byte
	count int // number of retained bytes
}

// Write implements io.Writer. It cannot fail; when the buffer is full the
// oldest byte is dropped for each new one.
func (b *earlyBuffer) Write(p []byte) (int, error) {
	for _, c := range p {
		b.data[(b.start+b.count)&(earlyBufferSize-1)] = c
		if b.count == earlyBufferSize {
			b.start = (b.start + 1) & (earlyBufferSize - 1)
		} else {
			b.count++
		}
	}
	return len(p), nil
}

// Read implements io.Reader, draining retained bytes in write order. It
// reports io.EOF once the buffer is empty.
func (b *earlyBuffer) Read(p []byte) (int, error) {
	if b.count == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && b.count > 0 {
		p[n] = b.data[b.start]
		b.start = (b.start + 1) & (earlyBufferSize - 1)
		b.count--
		n++
	}
	return n, nil
}
