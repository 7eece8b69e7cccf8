package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

// APIKeys holds the analysis service keys read from the JSON keys file.
type APIKeys struct {
	DashScope string `json:"dashscope_api_key"`
}

// LoadAPIKeys reads the keys file. A missing file, malformed JSON, or a file
// without dashscope_api_key is a configuration error.
func LoadAPIKeys(path string) (*APIKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Errorf(types.ErrConfiguration, "read keys file %s", path).WithCause(err)
	}

	var keys APIKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, types.Errorf(types.ErrConfiguration, "parse keys file %s", path).WithCause(err)
	}
	keys.DashScope = strings.TrimSpace(keys.DashScope)

	if keys.DashScope == "" {
		return nil, types.Errorf(types.ErrConfiguration, "keys file %s has no dashscope_api_key", path)
	}
	return &keys, nil
}

// AnalysisKey returns the key used for the OpenAI-compatible analysis endpoint.
func (k *APIKeys) AnalysisKey() (string, error) {
	if k == nil || k.DashScope == "" {
		return "", types.NewError(types.ErrConfiguration, "dashscope_api_key is not configured")
	}
	return k.DashScope, nil
}
