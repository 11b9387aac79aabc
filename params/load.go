package params

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadJSON overlays the JSON file at path onto Defaults(). Fields absent
// from the file keep their default; unknown fields are rejected.
func LoadJSON(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}
