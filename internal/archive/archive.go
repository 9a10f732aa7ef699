// Package archive bundles a day's output directory into a single
// tar.gz file, optionally removing the source directory afterward.
// Grounded on the teacher's stdlib compress/gzip usage (there:
// decompressing inbound objects; here: compressing outbound day
// directories) combined with archive/tar for the day-level bundle.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BundleDay writes dayDir's contents into <dayDir>.tar.gz. Archive and
// cleanup failures are non-fatal to the overall run per spec.md §7. If
// bundling fails the day directory is left untouched; it is removed only
// after a successful bundle, and only when cleanupAfter is set.
func BundleDay(dayDir string, cleanupAfter bool) (archivePath string, err error) {
	archivePath = dayDir + ".tar.gz"
	if err := writeTarGz(dayDir, archivePath); err != nil {
		return "", fmt.Errorf("archive: bundle %s: %w", dayDir, err)
	}
	if cleanupAfter {
		if err := os.RemoveAll(dayDir); err != nil {
			return archivePath, fmt.Errorf("archive: cleanup %s: %w", dayDir, err)
		}
	}
	return archivePath, nil
}

func writeTarGz(srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.Dir(srcDir), path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
