// Package config loads watchloop's TOML configuration file into structured
// filter, command, and signal-mapping data. Load parses once at startup,
// Reload re-parses the same path on demand (e.g. in response to a
// Signal(HUP) outcome) and returns a fresh *Config without touching the one
// currently in use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/wardendev/watchloop/internal/filter"
	"github.com/wardendev/watchloop/werr"
)

// FilterSpec is the TOML-facing shape of a filter.Filter: plain strings and
// bools instead of the internal Matcher/Op/Pattern enums, translated by
// ToFilter. Filters are constructed from already-structured TOML fields,
// not a bespoke string DSL.
type FilterSpec struct {
	On      string   `toml:"on"`
	Op      string   `toml:"op"`
	Pattern string   `toml:"pattern,omitempty"`
	Set     []string `toml:"set,omitempty"`
	InPath  string   `toml:"in_path,omitempty"`
	Negate  bool     `toml:"negate,omitempty"`
}

// Config is the root TOML document.
type Config struct {
	// Command is the child process to run and supervise, e.g.
	// ["go", "run", "."].
	Command []string `toml:"command"`

	// Dir is the working directory for the child process and the watched
	// origin; empty means the directory containing the config file, and a
	// relative path is resolved against that directory (see Abs).
	Dir string `toml:"dir,omitempty"`

	// EnvFile, if set, is loaded with godotenv and merged over the
	// inherited environment once at startup (see Env); every child spawned
	// by a Start/StartHook outcome gets that environment. Later edits to
	// the file are not picked up.
	EnvFile string `toml:"env_file,omitempty"`

	// Watch is the list of paths fed to the filesystem watch source.
	Watch []string `toml:"watch,omitempty"`

	// IgnoreFiles are gitignore-format files loaded into the Ignore
	// Sub-Filterer at startup (typically [".gitignore", ".watchloopignore"]).
	IgnoreFiles []string `toml:"ignore_files,omitempty"`

	// Filters is the user-specified predicate set, translated into
	// filter.Filter records by ToFilters.
	Filters []FilterSpec `toml:"filters,omitempty"`

	// Debounce controls how long the dispatcher coalesces filesystem
	// events before evaluating them as one batch.
	Debounce time.Duration `toml:"debounce,omitempty"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level,omitempty"`

	// RestartSignal, if set, is sent to a running child in place of
	// stopping it before the new child starts; the signalled child is not
	// waited for or killed. Empty means kill+wait+start with no signal.
	RestartSignal string `toml:"restart_signal,omitempty"`
}

var matcherNames = map[string]filter.Matcher{
	"tag": filter.MatcherTag, "path": filter.MatcherPath,
	"file_type": filter.MatcherFileType, "file_event_kind": filter.MatcherFileEventKind,
	"source": filter.MatcherSource, "process": filter.MatcherProcess,
	"signal": filter.MatcherSignal, "process_completion": filter.MatcherProcessCompletion,
	"priority": filter.MatcherPriority,
}

var opNames = map[string]filter.Op{
	"auto": filter.OpAuto, "equal": filter.OpEqual, "not_equal": filter.OpNotEqual,
	"regex": filter.OpRegex, "not_regex": filter.OpNotRegex,
	"in_set": filter.OpInSet, "not_in_set": filter.OpNotInSet,
	"glob": filter.OpGlob, "not_glob": filter.OpNotGlob,
}

// ToFilter translates a TOML-facing FilterSpec into a filter.Filter, ready
// for Filterer.AddFilters (which canonicalises it). Returns an error for an
// unrecognised "on" or "op" name.
func (s FilterSpec) ToFilter() (filter.Filter, error) {
	on, ok := matcherNames[s.On]
	if !ok {
		return filter.Filter{}, fmt.Errorf("config: unknown filter dimension %q", s.On)
	}
	op, ok := opNames[s.Op]
	if !ok {
		return filter.Filter{}, fmt.Errorf("config: unknown filter operator %q", s.Op)
	}

	var pat filter.Pattern
	switch {
	case len(s.Set) > 0:
		pat = filter.SetPattern(s.Set)
	case op == filter.OpGlob || op == filter.OpNotGlob:
		pat = filter.GlobPattern(s.Pattern)
	case op == filter.OpRegex || op == filter.OpNotRegex:
		pat = filter.RegexPattern(s.Pattern)
	case s.Pattern == "":
		pat = filter.AbsentPattern()
	default:
		pat = filter.ExactPattern(s.Pattern)
	}

	return filter.Filter{On: on, Op: op, Pat: pat, InPath: s.InPath, Negate: s.Negate}, nil
}

// ToFilters translates every FilterSpec in c.Filters, stopping at the first
// translation error.
func (c *Config) ToFilters() ([]filter.Filter, error) {
	out := make([]filter.Filter, 0, len(c.Filters))
	for i, spec := range c.Filters {
		f, err := spec.ToFilter()
		if err != nil {
			return nil, fmt.Errorf("config: filters[%d]: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Env returns the environment the child process should be spawned with:
// the current process's environment, overridden by EnvFile if set.
func (c *Config) Env() ([]string, error) {
	base := os.Environ()
	if c.EnvFile == "" {
		return base, nil
	}
	overrides, err := godotenv.Read(c.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("config: read env file %q: %w", c.EnvFile, err)
	}
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// Load reads and parses the TOML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if c.Debounce == 0 {
		c.Debounce = 30 * time.Millisecond
	}
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("config: %q: %w", path, werr.ErrNoCommands)
	}
	return &c, nil
}

// Reload re-parses path: intended to be called from a Signal(HUP) Outcome
// Hook or an explicit user command, never mutating the Config currently in
// use so in-flight Outcome Workers keep a consistent snapshot.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// Abs resolves dir (the Config.Dir field, which may be relative to the
// config file's own directory) to an absolute path.
func Abs(configPath, dir string) (string, error) {
	if dir == "" {
		return filepath.Abs(filepath.Dir(configPath))
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	return filepath.Abs(filepath.Join(filepath.Dir(configPath), dir))
}
