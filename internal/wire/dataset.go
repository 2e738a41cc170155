package wire

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanshika/supplytrace/internal/domain"
)

// Dataset is a seed file of registry contents.
type Dataset struct {
	Traders        []domain.Trader        `json:"traders"`
	Commodities    []domain.Commodity     `json:"commodities"`
	PurchaseOrders []domain.PurchaseOrder `json:"purchaseOrders,omitempty"`
}

// Format selects the encoding of a dataset file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the format from a file extension; anything not YAML is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadDataset reads a dataset from path.
func LoadDataset(path string) (Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer file.Close()

	ds, err := DecodeDataset(file, FormatFor(path))
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// DecodeDataset reads a dataset in the given format. YAML documents use the same field
// names as JSON; they are normalised to JSON so the domain decoders apply unchanged.
func DecodeDataset(r io.Reader, format Format) (Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	if format == FormatYAML {
		data, err = yamlToJSON(data)
		if err != nil {
			return Dataset{}, err
		}
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// WriteDataset writes ds as indented JSON.
func WriteDataset(w io.Writer, ds Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}
