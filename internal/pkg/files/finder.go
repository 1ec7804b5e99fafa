// Package files locates solution files on local disk.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/competitive-cli/judge/pkg/judges"
)

// Finder implements judges.FileFinder.
type Finder struct {
	// DefaultPath is used when search path is empty.
	DefaultPath string
}

// FindLocalFile returns path of the first file in lexical walk order
// whose name contains problem id.
func (f Finder) FindLocalFile(problem, searchPath string) (string, error) {
	if problem == "" {
		return "", fmt.Errorf("%w: empty problem", judges.ErrFileNotFound)
	}
	root := searchPath
	if root == "" {
		root = f.DefaultPath
	}
	if root == "" {
		root = "."
	}
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() || !strings.Contains(d.Name(), problem) {
			return nil
		}
		found = path
		return fs.SkipAll
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %v", judges.ErrFileNotFound, err)
		}
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf(
			"%w: no file for problem %q in %q", judges.ErrFileNotFound, problem, root,
		)
	}
	return found, nil
}

var _ judges.FileFinder = Finder{}
