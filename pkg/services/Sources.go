package services

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var sourceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func isImageFile(path string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}

/*
collectImagePaths expands the CLI arguments into a flat, lexicographically
sorted list of image files. Directories are walked recursively; non-image
files are ignored. A path that does not exist is an input error that fails
the whole run before anything is uploaded.
*/
func collectImagePaths(paths []string) ([]string, error) {
	var sources []string

	for _, path := range paths {
		info, err := os.Stat(path)

		if err != nil {
			return nil, fmt.Errorf("input path %s: %w", path, err)
		}

		if !info.IsDir() {
			if isImageFile(path) {
				sources = append(sources, path)
			}

			continue
		}

		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && isImageFile(entry) {
				sources = append(sources, entry)
			}

			return nil
		})

		if err != nil {
			return nil, fmt.Errorf("error walking directory %s: %w", path, err)
		}
	}

	sort.Strings(sources)
	return sources, nil
}
