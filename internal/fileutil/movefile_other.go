//go:build !unix

package fileutil

import (
	"errors"
	"os"
)

func isCrossDevice(err error) bool {
	// Windows reports cross-volume renames as a link error; treat any
	// rename failure with both paths intact as worth the copy fallback.
	var linkErr *os.LinkError
	return errors.As(err, &linkErr)
}
