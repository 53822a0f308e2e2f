// Package xid mints prefixed ids that sort roughly by creation time. The
// timestamp is encoded base-36 to keep ids short; a random suffix breaks
// ties within a nanosecond.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

func New(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return prefix + "-" + ts
	}
	return prefix + "-" + ts + "-" + hex.EncodeToString(buf)
}
