package taskgraph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for task files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported task file format")

// Document is the on-disk form of a graph, shared by the YAML and TOML
// formats:
//
//	title: release
//	tasks:
//	  - id: build
//	    status: done
//	  - id: test
//	    name: Unit tests
//	    status: running
//	    progress: 0.4
//	    deps: [build]
type Document struct {
	Title string         `yaml:"title" toml:"title"`
	Tasks []TaskDocument `yaml:"tasks" toml:"tasks"`
}

// TaskDocument is the on-disk form of a task. Tasks without an id get a
// random one and therefore cannot be depended on.
type TaskDocument struct {
	ID       string   `yaml:"id" toml:"id"`
	Name     string   `yaml:"name" toml:"name"`
	Status   string   `yaml:"status" toml:"status"`
	Progress float64  `yaml:"progress" toml:"progress"`
	Deps     []string `yaml:"deps" toml:"deps"`
}

// Graph converts the document into a validated graph.
func (d Document) Graph() (*Graph, error) {
	tasks := make([]Task, 0, len(d.Tasks))
	for i, td := range d.Tasks {
		status, err := ParseStatus(td.Status)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		id := td.ID
		if id == "" {
			id = uuid.NewString()
		}
		tasks = append(tasks, Task{
			ID:       id,
			Name:     td.Name,
			Status:   status,
			Progress: td.Progress,
			Deps:     td.Deps,
		})
	}
	return New(d.Title, tasks)
}

// ParseYAML parses a YAML task document.
func ParseYAML(data []byte) (*Graph, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return doc.Graph()
}

// ParseTOML parses a TOML task document. Tasks are an array of tables:
//
//	title = "release"
//
//	[[tasks]]
//	id = "build"
//	status = "done"
func ParseTOML(data []byte) (*Graph, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	return doc.Graph()
}

// Load reads a task file, choosing the format from its extension:
// .yaml/.yml, .toml or .lua.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var g *Graph
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		g, err = ParseYAML(data)
	case ".toml":
		g, err = ParseTOML(data)
	case ".lua":
		g, err = ParseLua(filepath.Base(path), string(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
