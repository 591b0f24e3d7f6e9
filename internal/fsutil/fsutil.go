// Package fsutil holds the filesystem operations the provisioner performs
// directly rather than through an external tool.
package fsutil

import (
	"fmt"
	"os"

	"github.com/bwoodyear/level-replay-provision/internal/model"
)

// Remover deletes repository directories before they are re-cloned.
type Remover struct{}

// NewRemover returns a Remover.
func NewRemover() *Remover {
	return &Remover{}
}

// RemoveAll deletes path and everything below it. A path that does not
// exist is not an error, so running it twice leaves the same state as
// running it once.
//
// There is no confirmation and no backup.
func (r *Remover) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return model.WrapCLIError(model.ExitFilesystemError, fmt.Sprintf("failed to remove %s", path), err)
	}
	return nil
}

// Exists reports whether anything is present at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
