package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ComputePackChecksum hashes a pack directory's contents. Regular files
// are hashed individually, then combined in sorted relative-path order,
// so the result is independent of filesystem traversal order. Renaming
// or moving a file changes the checksum; directory entries themselves
// do not contribute.
func ComputePackChecksum(dir string) (string, error) {
	fileHashes := make(map[string][]byte)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		sum, err := hashFile(path)
		if err != nil {
			return err
		}
		fileHashes[filepath.ToSlash(rel)] = sum
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", dir, err)
	}

	paths := make([]string, 0, len(fileHashes))
	for p := range fileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s %x\n", p, fileHashes[p])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
