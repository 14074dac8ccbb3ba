//go:build linux || darwin

package backend

import "syscall"

// statfsAvailable returns bytes available to an unprivileged user on the
// filesystem backing dir, per §4.4's free-space check.
func statfsAvailable(dir string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
