package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/voxlink/vox-capture-service/internal/storage"
)

// BuildArchive zips the named store artifacts into a new archive inside
// the same store and returns the archive's path. Artifacts that vanished
// since listing are skipped rather than failing the archive.
func BuildArchive(store *storage.Store, names []string, archiveName string) (string, error) {
	path := store.Path(archiveName)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	writer := zip.NewWriter(out)

	for _, name := range names {
		if err := addEntry(writer, store, name); err != nil {
			writer.Close()
			out.Close()
			return "", err
		}
	}

	if err := writer.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	return path, nil
}

func addEntry(writer *zip.Writer, store *storage.Store, name string) error {
	in, err := os.Open(store.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s for archiving: %w", name, err)
	}
	defer in.Close()

	entry, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return fmt.Errorf("failed to write %s into archive: %w", name, err)
	}
	return nil
}
