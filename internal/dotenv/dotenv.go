// Package dotenv loads dotenv-style overlay files and merges them with the
// process environment.
package dotenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Overlay maps variable names to values.
type Overlay map[string]string

// Load reads the given files in order; later files override earlier ones.
// Missing files are skipped unless required is set.
func Load(paths []string, required bool) (Overlay, error) {
	overlay := make(Overlay)
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !required {
				continue
			}
			return nil, fmt.Errorf("failed to load dotenv file %s: %w", path, err)
		}
		for k, v := range values {
			overlay[k] = v
		}
	}
	return overlay, nil
}

// FromEnviron converts a KEY=value slice such as os.Environ() into a map.
// Entries without '=' are dropped.
func FromEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, e := range environ {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// Merge layers the overlays over base. The last overlay that sets a key wins.
func Merge(base map[string]string, overlays ...map[string]string) map[string]string {
	merged := make(map[string]string, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for _, o := range overlays {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}

// Environ renders env as a sorted KEY=value slice suitable for exec.Cmd.Env.
func Environ(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// PrependPath joins entries with the OS list separator and puts them in
// front of current, which may be empty.
func PrependPath(entries []string, current string) string {
	parts := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if e != "" {
			parts = append(parts, e)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
