package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ArchiveExports zips the contents of exportDir into a timestamped
// archive next to it and returns the archive path. The export
// directory itself is left in place.
func ArchiveExports(exportDir string) (string, error) {
	if _, err := os.Stat(exportDir); os.IsNotExist(err) {
		return "", fmt.Errorf("export directory does not exist: %s", exportDir)
	}

	timestamp := time.Now().Format("20060102-150405")
	archivePath := filepath.Join(filepath.Dir(exportDir),
		fmt.Sprintf("%s-%s.zip", filepath.Base(exportDir), timestamp))

	zipFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer zipFile.Close()

	archive := zip.NewWriter(zipFile)
	defer archive.Close()

	err = filepath.Walk(exportDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(exportDir, path)
		if err != nil {
			return err
		}
		w, err := archive.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to add files to archive: %w", err)
	}
	return archivePath, nil
}
