package codegen

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// WriteArchive packages generated project files into a zip stream, using the
// faster flate implementation at maximum compression.
func WriteArchive(w io.Writer, files []File) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, f := range files {
		fw, err := zw.Create(f.Path)
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s to archive: %w", f.Path, err)
		}
		if _, err := fw.Write([]byte(f.Content)); err != nil {
			zw.Close()
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}
