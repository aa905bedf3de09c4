//go:build !unix

package follow

import "os"

// identityOf has no device/inode source on this platform; rotation detection
// degrades to size comparison.
func identityOf(fi os.FileInfo) (Identity, bool) {
	return Identity{}, false
}
