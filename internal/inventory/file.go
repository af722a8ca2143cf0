package inventory

import (
	"context"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/pkg/errors"
)

// FileCollector serves a snapshot from a local YAML fixture. It backs
// offline evaluation runs, where decisions are computed against a captured
// inventory instead of live provider APIs.
type FileCollector struct {
	path string
}

func NewFileCollector(path string) *FileCollector {
	return &FileCollector{path: path}
}

func (c *FileCollector) Name() string { return "file" }

type fileInventory struct {
	Resources []*resource.Resource `yaml:"resources"`
	Spend     []fileSpend          `yaml:"spend,omitempty"`
}

type fileSpend struct {
	Key    string  `yaml:"key"`
	Amount float64 `yaml:"amount"`
	Daily  []struct {
		Date   string  `yaml:"date"`
		Amount float64 `yaml:"amount"`
	} `yaml:"daily,omitempty"`
}

func (c *FileCollector) Collect(_ context.Context) ([]*resource.Resource, error) {
	inv, err := c.load()
	if err != nil {
		return nil, err
	}
	return inv.Resources, nil
}

// ScopeSpends implements SpendFeed over the fixture's spend section. The
// scope tag is ignored; the fixture's keys are used as-is.
func (c *FileCollector) ScopeSpends(_ context.Context, _ string, _, _ time.Time) ([]spend.ScopeSpend, error) {
	inv, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]spend.ScopeSpend, 0, len(inv.Spend))
	for _, fs := range inv.Spend {
		s := spend.ScopeSpend{Key: fs.Key, Amount: fs.Amount}
		if s.Key == "" {
			s.Key = spend.TotalKey
		}
		for _, d := range fs.Daily {
			day, err := time.Parse("2006-01-02", d.Date)
			if err != nil {
				return nil, errors.ConfigError("", "spend.daily.date", err.Error())
			}
			s.Daily = append(s.Daily, resource.Point{Timestamp: day, Value: d.Amount})
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *FileCollector) load() (*fileInventory, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.StoreError("read inventory file", err)
	}
	var inv fileInventory
	if err := yaml.Unmarshal(raw, &inv); err != nil {
		return nil, errors.StoreError("parse inventory file", err)
	}
	return &inv, nil
}
