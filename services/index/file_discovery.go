package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/payload"
)

// Rendered assets never contain the payload
var excludedFolders = map[string]struct{}{
	"_static":  {},
	"_sources": {},
	"_images":  {},
}

// DiscoverPayload resolves rootPath to a payload file. A file is used as is,
// a directory is searched and the shallowest payload file wins.
func DiscoverPayload(logger logger.Logger, rootPath string) (string, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", payload.ErrIndexNotFound, rootPath)
		}
		return "", err
	}
	if !info.IsDir() {
		return rootPath, nil
	}

	var candidates []string
	err = filepath.WalkDir(rootPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Error("could not walk through file or directory", "path", path, "err", err.Error())
			if errors.Is(err, os.ErrPermission) {
				return nil
			}
			return err
		}

		if entry.IsDir() {
			// Skip directories that start with '.' but not the root directory
			if path != rootPath && (strings.HasPrefix(entry.Name(), ".") || isExcludedFolder(entry.Name())) {
				return filepath.SkipDir
			}
			return nil
		}

		if payload.IsPayloadFile(entry.Name()) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no searchindex.js under %s", payload.ErrIndexNotFound, rootPath)
	}

	sort.Slice(candidates, func(i, j int) bool {
		di, dj := depth(candidates[i]), depth(candidates[j])
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	return candidates[0], nil
}

func isExcludedFolder(name string) bool {
	_, ok := excludedFolders[name]
	return ok
}

func depth(path string) int {
	return strings.Count(filepath.ToSlash(filepath.Clean(path)), "/")
}
