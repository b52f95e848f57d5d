package scopealloc

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id from its stack trace
// header ("goroutine 123 [running]: ..."). There is no supported Go API for
// goroutine identity; this is the same parse-the-stack trick the wider Go
// ecosystem reaches for when something genuinely needs a thread-owner
// check. It is not used for scheduling, only for detecting cross-goroutine
// misuse.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]

	idx := bytes.IndexByte(buf, ' ')
	if idx < 0 {
		return 0
	}

	id, err := strconv.ParseUint(string(buf[:idx]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
