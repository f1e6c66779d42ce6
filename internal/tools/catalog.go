package tools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	stewarderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/llm"
)

// catalogFile is the on-disk shape of a tool catalog.
type catalogFile struct {
	Tools []llm.ToolSpec `yaml:"tools"`
}

// LoadCatalog reads tool specs from a YAML file. The catalog only declares
// what the model is offered; handlers are registered separately at startup,
// and a spec without a matching handler is rejected at registration time by
// the caller.
//
// Example:
//
//	tools:
//	  - name: send_email
//	    description: Send an email on the user's behalf
//	    parameters:
//	      type: object
//	      properties:
//	        to: {type: string}
//	      required: [to]
func LoadCatalog(path string) ([]llm.ToolSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read tool catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s", stewarderrors.ErrCatalogInvalid, err.Error())
	}

	seen := make(map[string]bool, len(file.Tools))
	for _, spec := range file.Tools {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: tool with empty name", stewarderrors.ErrCatalogInvalid)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: duplicate tool %q", stewarderrors.ErrCatalogInvalid, spec.Name)
		}
		seen[spec.Name] = true
	}

	return file.Tools, nil
}
