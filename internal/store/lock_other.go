//go:build !unix && !windows

package store

import "os"

// Platforms without advisory locks fall back to the in-process mutex.
func tryLockFile(*os.File) (bool, error) { return true, nil }

func unlockFile(*os.File) error { return nil }
