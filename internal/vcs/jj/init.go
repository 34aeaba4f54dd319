package jj

import "github.com/Mschirtzinger/migfix/internal/vcs"

func init() {
	vcs.Register(vcs.TypeJJ, open)
}

func open(path string) (vcs.VCS, error) {
	return New(path)
}
