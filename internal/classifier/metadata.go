package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

const defaultImageSize = 224

// Metadata is the label descriptor exported next to the model.
type Metadata struct {
	Labels    []string `json:"labels"`
	ImageSize int      `json:"imageSize"`
	ModelName string   `json:"modelName,omitempty"`
}

// loadMetadata accepts the exporter's object form or a bare label list
// (array or {"0": "label"} map).
func loadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err == nil && len(md.Labels) > 0 {
		if md.ImageSize <= 0 {
			md.ImageSize = defaultImageSize
		}
		return md, validateLabels(md.Labels)
	}

	labels, err := decodeLabelList(data)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Labels: labels, ImageSize: defaultImageSize}, validateLabels(labels)
}

func decodeLabelList(data []byte) ([]string, error) {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadata has no labels: %w", err)
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

func validateLabels(labels []string) error {
	if len(labels) == 0 {
		return errors.New("metadata has no labels")
	}
	seen := make(map[string]bool, len(labels))
	for i, l := range labels {
		if l == "" {
			return fmt.Errorf("label %d is empty", i)
		}
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	return nil
}
