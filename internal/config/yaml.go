// Package config loads command defaults from YAML files for kong.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are searched in order; the first file found wins per flag.
var DefaultPaths = []string{
	"~/.photoctl/config.yaml",
	"/etc/photoctl/config.yaml",
}

// YAML is a kong.ConfigurationLoader. Top level keys set global flags and a
// mapping named after a command sets that command's flags:
//
//	server: https://photos.example.com
//	timeout: 10s
//	login:
//	  user: demo-user
//
// Flag names may be written with dashes or underscores.
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var resolver kong.ResolverFunc = func(_ *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		if parent != nil && parent.Command != nil {
			if section, ok := values[parent.Command.Name].(map[string]any); ok {
				if v, ok := lookup(section, flag.Name); ok {
					return v, nil
				}
			}
		}
		if v, ok := lookup(values, flag.Name); ok {
			return v, nil
		}
		return nil, nil
	}

	return resolver, nil
}

func lookup(values map[string]any, name string) (any, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		v, ok := values[key]
		if !ok {
			continue
		}
		// sections are not flag values
		if _, isSection := v.(map[string]any); isSection {
			return nil, false
		}
		return v, true
	}
	return nil, false
}
