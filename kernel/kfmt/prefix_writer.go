package kfmt

import "io"

// PrefixWriter is an io.Writer that injects a fixed prefix at the start of
// every line it forwards to Sink. The leveled log layer routes each kernel
// log line through one of these so trap-path and scheduler output carries
// its severity tag even when a message arrives split across several writes.
type PrefixWriter struct {
	// Sink receives the prefixed output.
	Sink io.Writer

	// Prefix is injected at the beginning of each line.
	Prefix []byte

	// midline is true while the current output line has already received
	// bytes, meaning its prefix is already out.
	midline bool
}

// Write forwards p to Sink, emitting the prefix before the first byte of
// every line. The returned count covers only the bytes of p, never the
// injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for start := 0; start < len(p); {
		if !w.midline {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midline = true
		}

		// Forward up to and including the next newline in one piece.
		end := start
		for end < len(p) && p[end] != '\n' {
			end++
		}
		if end < len(p) {
			end++
			w.midline = false
		}

		n, err := w.Sink.Write(p[start:end])
		written += n
		if err != nil {
			return written, err
		}
		start = end
	}

	return written, nil
}
