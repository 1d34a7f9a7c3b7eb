//go:build unix

package privatefile

import "golang.org/x/sys/unix"

func fileMode(_ any, fd uintptr) (uint32, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		return 0, err
	}
	return uint32(st.Mode), nil
}
