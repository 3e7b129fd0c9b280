// cmd/targets.go
package cmd

import (
	"errors"
	"fmt"
	"net/url"
)

// resolveTargets turns command arguments into absolute URLs. Relative arguments are resolved
// against base; with no arguments the base URL itself is the only target.
func resolveTargets(base string, args []string) ([]string, error) {
	if len(args) == 0 {
		if base == "" {
			return nil, errors.New("no target given and run.base_url is not set")
		}
		args = []string{base}
	}

	var baseURL *url.URL
	if base != "" {
		u, err := url.Parse(base)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("run.base_url %q is not an absolute URL", base)
		}
		baseURL = u
	}

	targets := make([]string, 0, len(args))
	for _, arg := range args {
		ref, err := url.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", arg, err)
		}
		if ref.IsAbs() {
			targets = append(targets, ref.String())
			continue
		}
		if baseURL == nil {
			return nil, fmt.Errorf("relative target %q needs run.base_url", arg)
		}
		targets = append(targets, baseURL.ResolveReference(ref).String())
	}
	return targets, nil
}
