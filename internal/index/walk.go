package index

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never descended into during a full walk.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	".locus":       true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
}

// indexable reports whether a repo-relative path is eligible for the
// index: every directory segment must clear the skip rules and the file
// must carry a supported extension. Full walks and merge passes share
// this predicate; a path only one of them accepted would be written by
// one pass and deleted by the next.
func indexable(rel string, supported func(string) bool) bool {
	segs := strings.Split(rel, "/")
	for _, seg := range segs[:len(segs)-1] {
		if skipDirs[seg] || strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return supported(rel)
}

// walkFile is one candidate file discovered by walkTree.
type walkFile struct {
	AbsPath string
	RelPath string // slash-separated, repo-relative
	Size    int64
}

// walkTree traverses the working tree and returns candidate files, filtered
// by the supported-path predicate and a size cap. Unreadable entries are
// skipped, never fatal.
func walkTree(root string, supported func(string) bool, maxBytes int64) ([]walkFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []walkFile
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors, keep walking
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			name := d.Name()
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !indexable(rel, supported) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			return nil
		}

		files = append(files, walkFile{
			AbsPath: path,
			RelPath: rel,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
