//go:build !unix

package kv

import "os"

// Advisory locking is only available on unix; elsewhere the in-process
// mutex is the only guard.

func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
