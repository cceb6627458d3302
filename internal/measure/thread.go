package measure

import (
	"bytes"
	"runtime"
	"strconv"

	"fortio.org/safecast"
)

// CurrentThreadID returns an identifier for the calling goroutine,
// truncated to 32 bits.
func CurrentThreadID() uint32 {
	gid := goroutineID()
	tid, err := safecast.Conv[uint32](gid)
	if err != nil {
		return uint32(gid & 0xFFFF_FFFF) //nolint:gosec // truncation is the point
	}
	return tid
}

// goroutineID extracts the current goroutine ID using runtime.Stack.
// This is a lightweight approach that doesn't require linkname or unsafe.
func goroutineID() uint64 {
	var arr [64]byte
	buf := arr[:runtime.Stack(arr[:], false)]

	// Stack format: "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}

	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}

	gid, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}
