package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/mkalvis/stockvault/internal/filex"
	"github.com/mkalvis/stockvault/internal/models"
)

// WriteExportFile writes the document as pretty-printed JSON into a
// subdirectory of the working directory, named
// {product}_backup_{YYYY-MM-DD}_{unixMillis}.json. Returns the full path.
func WriteExportFile(doc *models.SnapshotDocument, dirName, product string) (string, error) {
	dir, err := filex.EnsureSubdDir(dirName)
	if err != nil {
		return "", fmt.Errorf("preparing export directory: %w", err)
	}

	name := fmt.Sprintf("%s_backup_%s_%d.json",
		product, doc.ExportDate.UTC().Format("2006-01-02"), doc.ExportDate.UnixMilli())

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}
	return path, nil
}
