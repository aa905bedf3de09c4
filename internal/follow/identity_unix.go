//go:build unix

package follow

import (
	"os"
	"syscall"
)

// identityOf extracts the device/inode pair from a stat result. It reports
// ok=false when the FileInfo carries no raw stat data (e.g. an in-memory
// filesystem), in which case rotation cannot be told apart from in-place
// rewrites and detection degrades to size comparison.
func identityOf(fi os.FileInfo) (Identity, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return Identity{}, false
	}
	return Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true
}
