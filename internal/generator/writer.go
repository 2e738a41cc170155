package generator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanshika/supplytrace/internal/wire"
)

// File names written by WriteOutput.
const (
	DatasetFile = "dataset.json"
	StreamFile  = "transactions.jsonl"
)

// WriteOutput serializes the seed dataset and the transaction stream under the provided directory.
func WriteOutput(out Output, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	datasetPath := filepath.Join(dir, DatasetFile)
	if err := writeFile(datasetPath, func(f *os.File) error {
		return wire.WriteDataset(f, out.Dataset)
	}); err != nil {
		return err
	}

	streamPath := filepath.Join(dir, StreamFile)
	return writeFile(streamPath, func(f *os.File) error {
		w := wire.NewStreamWriter(f)
		for i, sub := range out.Stream {
			if err := w.Write(sub.Credential, sub.Payload); err != nil {
				return fmt.Errorf("entry %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func writeFile(path string, write func(f *os.File) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
