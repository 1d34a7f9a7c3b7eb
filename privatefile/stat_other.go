//go:build !unix

package privatefile

import "io/fs"

type statter interface {
	Stat() (fs.FileInfo, error)
}

func fileMode(r any, _ uintptr) (uint32, error) {
	s, ok := r.(statter)
	if !ok {
		return 0, nil
	}
	fi, err := s.Stat()
	if err != nil {
		return 0, err
	}
	return uint32(fi.Mode().Perm()), nil
}
