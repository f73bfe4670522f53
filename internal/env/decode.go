package env

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Node is one entry of the parser's type tree. The root node aggregates every top-level
// declaration in Children.
type Node struct {
	Path     string    `json:"path"`
	Vars     []NodeVar `json:"vars"`
	Children []Node    `json:"children"`
}

type NodeVar struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
}

//go:embed schema/environment.schema.json
var schemaText string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func treeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("environment.schema.json", schemaText)
	})
	return schema, schemaErr
}

// Decode reads and validates a parser tree.
func Decode(r io.Reader) (Node, error) {
	var root Node
	raw, err := io.ReadAll(r)
	if err != nil {
		return root, err
	}
	s, err := treeSchema()
	if err != nil {
		return root, fmt.Errorf("environment schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return root, fmt.Errorf("environment tree: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return root, fmt.Errorf("environment tree: %w", err)
	}
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&root); err != nil {
		return root, fmt.Errorf("environment tree: %w", err)
	}
	return root, nil
}

// LoadFile decodes the parser output at jsonPath and indexes it for the environment envPath.
func LoadFile(jsonPath, envPath string) (*Environment, error) {
	f, err := os.Open(jsonPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return Build(root, envPath)
}
