// Package catalog resolves built-in curriculum templates by id, from a
// local template directory or a remote registry.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/unichart/unichart/internal/curriculum"
)

// ErrNotFound is returned when no template exists for an id.
var ErrNotFound = errors.New("template not found")

// RegistryEntry describes one selectable template.
type RegistryEntry struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	University string `json:"university,omitempty" yaml:"university,omitempty"`
}

// Catalog provides read access to built-in templates.
type Catalog interface {
	Template(ctx context.Context, id string) (*curriculum.Template, error)
	Registry(ctx context.Context) ([]RegistryEntry, error)
}

// FSCatalog loads and caches templates from a directory. Templates live
// under {root}/templates as {id}.json or {id}.yaml; an optional
// registry.json lists the entries to advertise.
type FSCatalog struct {
	root      string
	templates map[string]curriculum.Template
	registry  []RegistryEntry
	mu        sync.RWMutex
}

// NewFSCatalog creates a filesystem catalog and loads all templates.
func NewFSCatalog(root string) (*FSCatalog, error) {
	c := &FSCatalog{
		root:      root,
		templates: make(map[string]curriculum.Template),
	}

	if err := c.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "templates", len(c.templates))
	return c, nil
}

func (c *FSCatalog) Template(ctx context.Context, id string) (*curriculum.Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (c *FSCatalog) Registry(ctx context.Context) ([]RegistryEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]RegistryEntry(nil), c.registry...), nil
}

func (c *FSCatalog) loadAll() error {
	dir := filepath.Join(c.root, "templates")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read template dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		switch {
		case name == "registry.json" || name == "registry.yaml" || name == "registry.yml":
			if err := c.loadRegistry(path); err != nil {
				return err
			}
		case strings.HasSuffix(name, ".json"),
			strings.HasSuffix(name, ".yaml"),
			strings.HasSuffix(name, ".yml"):
			c.loadTemplate(path)
		}
	}

	// Without a registry file, advertise every loaded template.
	if c.registry == nil {
		for _, t := range c.templates {
			c.registry = append(c.registry, RegistryEntry{
				ID:         t.ID,
				Title:      t.Title,
				University: t.University,
			})
		}
	}
	return nil
}

func (c *FSCatalog) loadTemplate(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("skipping unreadable template file", "path", path, "error", err)
		return
	}

	var tmpl curriculum.Template
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &tmpl)
	} else {
		err = yaml.Unmarshal(data, &tmpl)
	}
	if err != nil {
		slog.Warn("skipping invalid template file", "path", path, "error", err)
		return
	}
	if tmpl.ID == "" {
		return
	}

	c.templates[tmpl.ID] = tmpl
}

func (c *FSCatalog) loadRegistry(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	var reg []RegistryEntry
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &reg)
	} else {
		err = yaml.Unmarshal(data, &reg)
	}
	if err != nil {
		return fmt.Errorf("decode registry: %w", err)
	}

	c.registry = reg
	return nil
}
