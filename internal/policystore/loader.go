package policystore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/pkg/errors"
	"github.com/costgov/costgov/internal/pkg/logger"
)

// Loader reads policy documents from a directory of YAML files. Each file
// may hold several documents separated by "---". A document that fails to
// parse or validate is excluded and reported; the remaining documents still
// load, so one bad policy never takes down the whole set.
type Loader struct {
	dir string
	log *logger.Logger
}

func NewLoader(dir string, log *logger.Logger) *Loader {
	return &Loader{dir: dir, log: log}
}

// Load parses every *.yaml and *.yml file under the directory and returns a
// store of the valid policies plus the per-document errors for the rest.
// An unreadable directory is fatal; individual bad documents are not.
func (l *Loader) Load() (*Store, []error, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, nil, errors.StoreError("read policy directory", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(l.dir, e.Name()))
		}
	}
	sort.Strings(files)

	var (
		valid    []*policy.Policy
		rejected []error
		byName   = map[string]string{}
	)
	for _, path := range files {
		docs, errs := l.loadFile(path)
		rejected = append(rejected, errs...)
		for _, p := range docs {
			if prev, ok := byName[p.Name]; ok {
				rejected = append(rejected, errors.ConfigError(p.Name, "name",
					fmt.Sprintf("duplicate policy name, first defined in %s", prev)))
				continue
			}
			byName[p.Name] = path
			valid = append(valid, p)
		}
	}

	for _, err := range rejected {
		l.log.ErrorWithErr(err, "policy rejected")
	}
	l.log.Infof("loaded %d policies from %s (%d rejected)", len(valid), l.dir, len(rejected))

	return NewStore(valid, time.Now().UTC()), rejected, nil
}

func (l *Loader) loadFile(path string) ([]*policy.Policy, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{errors.StoreError("open policy file "+path, err)}
	}
	defer f.Close()

	var (
		policies []*policy.Policy
		errs     []error
		dec      = yaml.NewDecoder(f)
	)
	for i := 0; ; i++ {
		var p policy.Policy
		err := dec.Decode(&p)
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, errors.ConfigError(
				fmt.Sprintf("%s#%d", filepath.Base(path), i), "yaml", err.Error()))
			// yaml.Decoder cannot resync after a malformed document;
			// the rest of the file is unparseable.
			break
		}
		if p.Name == "" && p.Kind == "" {
			continue // empty document between separators
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		policies = append(policies, &p)
	}
	return policies, errs
}
