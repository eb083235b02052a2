package graphfold

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/graphfold/graphfold/pkg/types"
)

// LoadPayload decodes an extraction payload from JSON bytes. Extraction
// output usually comes from an LLM, so the bytes pass through a repair
// step first: trailing commas, unquoted keys, and similar damage are
// mended instead of rejected.
func LoadPayload(data []byte) (*types.ExtractionPayload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("extraction payload is empty")
	}
	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return nil, fmt.Errorf("repair extraction payload: %w", err)
	}
	payload := &types.ExtractionPayload{}
	if err := json.Unmarshal([]byte(repaired), payload); err != nil {
		return nil, fmt.Errorf("decode extraction payload: %w", err)
	}
	return payload, nil
}

// LoadPayloadFile reads and decodes an extraction payload from a file.
func LoadPayloadFile(path string) (*types.ExtractionPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read extraction payload: %w", err)
	}
	payload, err := LoadPayload(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return payload, nil
}
