package inventory

import (
	"context"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/pkg/errors"
)

// FileMetrics attaches utilization series from a YAML fixture, keyed by
// resource ID. It substitutes for a live telemetry backend: collectors list
// resources, this source supplies the series utilization policies read.
type FileMetrics struct {
	path string
}

func NewFileMetrics(path string) *FileMetrics {
	return &FileMetrics{path: path}
}

type fileSample struct {
	Timestamp time.Time `yaml:"timestamp"`
	Value     float64   `yaml:"value"`
}

// Attach merges the fixture's series into matching resources. Resources
// absent from the file are left untouched; their policies see a data gap
// instead of fabricated telemetry.
func (m *FileMetrics) Attach(_ context.Context, resources []*resource.Resource) error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return errors.StoreError("read metrics file", err)
	}
	var byID map[string]map[string][]fileSample
	if err := yaml.Unmarshal(raw, &byID); err != nil {
		return errors.StoreError("parse metrics file", err)
	}

	for _, r := range resources {
		series, ok := byID[r.ID]
		if !ok {
			continue
		}
		if r.Metrics == nil {
			r.Metrics = make(map[string]resource.Series, len(series))
		}
		for metric, samples := range series {
			s := r.Metrics[metric]
			for _, p := range samples {
				s = append(s, resource.Point{Timestamp: p.Timestamp, Value: p.Value})
			}
			r.Metrics[metric] = s.Sorted()
		}
	}
	return nil
}
