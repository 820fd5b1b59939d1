package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// DefaultInstanceFile is loaded from the working directory when neither
// files nor a directory are given.
const DefaultInstanceFile = "example_config.toml"

const instanceFileExt = ".toml"

var (
	// ErrNoSource means no instance file or directory was given.
	ErrNoSource = errors.New("no configuration file specified")
	// ErrNoValidFiles means every candidate instance file was rejected.
	ErrNoValidFiles = errors.New("no valid configuration files found")
)

// Sources names where instance files come from. Files and Dir are mutually
// exclusive.
type Sources struct {
	Files []string
	Dir   string
}

// LoadInstances resolves the instance files named by src. Invalid files are
// logged and skipped. When src yields nothing usable the default file in
// the working directory is tried before giving up.
func LoadInstances(src Sources, log *slog.Logger) ([]Instance, error) {
	instances, err := loadFromSources(src, log)
	if err == nil {
		return instances, nil
	}
	log.Warn("falling back to default configuration", "reason", err)

	inst, derr := LoadInstance(DefaultInstanceFile)
	if derr != nil {
		log.Error("default configuration unusable", "path", DefaultInstanceFile, "error", derr)
		return nil, fmt.Errorf("%w; default %s: %v", err, DefaultInstanceFile, derr)
	}
	log.Info("using default configuration file", "path", inst.Path)
	return []Instance{inst}, nil
}

func loadFromSources(src Sources, log *slog.Logger) ([]Instance, error) {
	if len(src.Files) > 0 && src.Dir != "" {
		return nil, fmt.Errorf("configuration files and directory are mutually exclusive")
	}

	var paths []string
	switch {
	case len(src.Files) > 0:
		paths = src.Files
	case src.Dir != "":
		dir, err := expandPath(src.Dir)
		if err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*"+instanceFileExt))
		if err != nil {
			return nil, fmt.Errorf("list configuration directory: %w", err)
		}
		sort.Strings(matches)
		paths = matches
	default:
		return nil, ErrNoSource
	}

	var (
		instances []Instance
		rejected  *multierror.Error
	)
	seen := make(map[string]string)
	for _, path := range paths {
		inst, err := LoadInstance(path)
		if err != nil {
			err = fmt.Errorf("%s: %w", path, err)
		} else if prev, dup := seen[inst.Name]; dup {
			err = fmt.Errorf("%s: instance name %q already used by %s", path, inst.Name, prev)
		}
		if err != nil {
			log.Error("skipping configuration file", "path", path, "error", err)
			rejected = multierror.Append(rejected, err)
			continue
		}
		seen[inst.Name] = inst.Path
		instances = append(instances, inst)
	}
	if len(instances) == 0 {
		if err := rejected.ErrorOrNil(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoValidFiles, err)
		}
		return nil, ErrNoValidFiles
	}
	return instances, nil
}
