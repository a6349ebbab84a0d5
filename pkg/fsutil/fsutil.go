// Package fsutil maps operating-system directories onto hackpadfs file
// systems so that the rest of the code only deals with slash-separated paths.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"
)

// OSDir returns a file system and the path of dir inside it. A relative dir
// below the working directory keeps its relative form ("corpus/a.txt"); any
// other dir becomes the root of the returned file system and is reported
// as ".".
func OSDir(dir string) (hackpadfs.FS, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	root, rel := abs, "."
	clean := filepath.Clean(dir)
	if !filepath.IsAbs(dir) && clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("reading working directory: %w", err)
		}
		root, rel = wd, filepath.ToSlash(clean)
	}

	fsys := osfs.NewFS()
	rootPath, err := fsys.FromOSPath(root)
	if err != nil {
		return nil, "", fmt.Errorf("mapping %s: %w", root, err)
	}
	sub, err := fsys.Sub(rootPath)
	if err != nil {
		return nil, "", fmt.Errorf("rooting file system at %s: %w", root, err)
	}
	return sub, rel, nil
}
