// Package apidocs embeds the OpenAPI description of the HTTP API and exposes
// it to the swagger UI handler.
package apidocs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/swaggo/swag"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var spec []byte

var (
	once    sync.Once
	docJSON []byte
	docErr  error
)

// YAML returns the description as written.
func YAML() []byte { return spec }

// JSON returns the description converted to JSON. The conversion runs once.
func JSON() ([]byte, error) {
	once.Do(func() {
		var v map[string]any
		if err := yaml.Unmarshal(spec, &v); err != nil {
			docErr = fmt.Errorf("parse openapi.yaml: %w", err)
			return
		}
		docJSON, docErr = json.Marshal(v)
	})
	return docJSON, docErr
}

type swaggerDoc struct{}

func (swaggerDoc) ReadDoc() string {
	b, err := JSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

var registerOnce sync.Once

// Register publishes the description under swag's default instance name, which
// is where the fiber swagger handler reads it from. Repeated calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		swag.Register(swag.Name, swaggerDoc{})
	})
}
