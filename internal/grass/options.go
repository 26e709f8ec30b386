package grass

import (
	"fmt"
	"sort"
	"strings"
)

// Options describes the arguments of one GRASS module call.
type Options struct {
	// Params holds key=value module options. Multi-value options are
	// passed comma separated, as GRASS expects.
	Params map[string]string
	// Flags holds the short flag characters, e.g. "ge" for -ge.
	Flags     string
	Quiet     bool
	Overwrite bool
}

// Args renders the options as a command line. Parameters are emitted in
// sorted key order so invocations are reproducible.
func (o Options) Args() []string {
	keys := make([]string, 0, len(o.Params))
	for k := range o.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, o.Params[k]))
	}
	if o.Flags != "" {
		args = append(args, "-"+o.Flags)
	}
	if o.Quiet {
		args = append(args, "--quiet")
	}
	if o.Overwrite {
		args = append(args, "--overwrite")
	}
	return args
}

// ParseKeyValue parses "key=value" lines as produced by GRASS modules
// run with the -g flag (r.univar, g.region, g.findfile, ...).
func ParseKeyValue(out []byte) map[string]string {
	kv := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		kv[parts[0]] = strings.Trim(parts[1], "'\"")
	}
	return kv
}

// ParseList parses one entry per line, as printed by t.list or g.list.
func ParseList(out []byte) []string {
	var items []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
