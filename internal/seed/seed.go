// Package seed loads gate configuration from a YAML document into a config
// store: the global record, per-queue overrides, secrets and page templates.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

type File struct {
	// Global is nil when the document has no global section. Fields the
	// section omits keep their default values.
	Global  *models.GlobalConfig
	Queues  []models.QueueRecord
	Secrets map[string]string
	Pages   map[string]string
}

type document struct {
	Global      yaml.Node            `yaml:"global"`
	Queues      []models.QueueRecord `yaml:"queues"`
	Secrets     map[string]string    `yaml:"secrets"`
	SecretFiles map[string]string    `yaml:"secretFiles"`
	Pages       map[string]string    `yaml:"pages"`
	PageFiles   map[string]string    `yaml:"pageFiles"`
}

// Load reads a seed file. secretFiles and pageFiles entries are paths,
// relative to the seed file, whose contents become the named secret or page.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parse(data, filepath.Dir(path))
}

func Parse(data []byte) (*File, error) {
	return parse(data, ".")
}

func parse(data []byte, dir string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	f := &File{
		Queues:  doc.Queues,
		Secrets: copyMap(doc.Secrets),
		Pages:   copyMap(doc.Pages),
	}

	if !doc.Global.IsZero() {
		global := models.DefaultGlobalConfig()
		if err := doc.Global.Decode(&global); err != nil {
			return nil, fmt.Errorf("parse seed file: global: %w", err)
		}
		f.Global = &global
	}

	for i, q := range f.Queues {
		if q.QueueName == "" {
			return nil, fmt.Errorf("parse seed file: queue %d has no queueName", i)
		}
	}

	if err := readFiles(dir, doc.SecretFiles, f.Secrets); err != nil {
		return nil, err
	}
	if err := readFiles(dir, doc.PageFiles, f.Pages); err != nil {
		return nil, err
	}

	return f, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func readFiles(dir string, files map[string]string, into map[string]string) error {
	for name, p := range files {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		into[name] = string(data)
	}
	return nil
}

// Apply writes every record in f to r. Records not present in f are left alone.
func (f *File) Apply(ctx context.Context, r repo.ConfigRepository) error {
	if f.Global != nil {
		if err := r.SetGlobal(ctx, f.Global); err != nil {
			return fmt.Errorf("seed global: %w", err)
		}
	}

	for i := range f.Queues {
		if err := r.SetQueue(ctx, &f.Queues[i]); err != nil {
			return fmt.Errorf("seed queue %s: %w", f.Queues[i].QueueName, err)
		}
	}

	for name, v := range f.Secrets {
		if err := r.SetSecret(ctx, name, v); err != nil {
			return fmt.Errorf("seed secret %s: %w", name, err)
		}
	}

	for name, body := range f.Pages {
		if err := r.SetPage(ctx, name, body); err != nil {
			return fmt.Errorf("seed page %s: %w", name, err)
		}
	}

	return nil
}
