package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
)

// File names exported by the country package.
const (
	ParametersFile = "parameters.json"
	VariablesFile  = "variables.json"
)

// Cache loads metadata documents on first use and keeps them for the process
// lifetime. Failed loads are not remembered; the next call reads again.
type Cache struct {
	dir string

	parametersMu sync.Mutex
	parameters   *Parameters

	variablesMu sync.Mutex
	variables   *Variables
}

// NewCache returns a cache reading documents from dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: strings.TrimSpace(dir)}
}

// Dir returns the metadata directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Parameters returns the parameter tree, loading it if needed.
func (c *Cache) Parameters(ctx context.Context) (Parameters, error) {
	c.parametersMu.Lock()
	defer c.parametersMu.Unlock()

	if c.parameters != nil {
		return *c.parameters, nil
	}
	data, err := c.read(ctx, ParametersFile)
	if err != nil {
		return Parameters{}, err
	}
	parameters, err := ParseParameters(data)
	if err != nil {
		return Parameters{}, apperrors.Wrap(apperrors.CodeMetadataUnavailable, "parse "+ParametersFile, err)
	}
	c.parameters = &parameters
	return parameters, nil
}

// Variables returns the variable catalog, loading it if needed.
func (c *Cache) Variables(ctx context.Context) (Variables, error) {
	c.variablesMu.Lock()
	defer c.variablesMu.Unlock()

	if c.variables != nil {
		return *c.variables, nil
	}
	data, err := c.read(ctx, VariablesFile)
	if err != nil {
		return Variables{}, err
	}
	variables, err := ParseVariables(data)
	if err != nil {
		return Variables{}, apperrors.Wrap(apperrors.CodeMetadataUnavailable, "parse "+VariablesFile, err)
	}
	c.variables = &variables
	return variables, nil
}

func (c *Cache) read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.dir == "" {
		return nil, apperrors.New(apperrors.CodeMetadataUnavailable, "metadata directory is not configured")
	}
	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeMetadataUnavailable, fmt.Sprintf("read %s", path), err)
	}
	return data, nil
}
