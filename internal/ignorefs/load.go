package ignorefs

import (
	"bufio"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wardendev/watchloop/werr"
)

// LoadFile reads a gitignore-format file from disk and returns its
// IgnoreFile record, scoped to appliesTo (normally the directory the file
// was found in). Line grammar follows the conventional gitignore rules:
// blank lines and lines starting with "#" are skipped, a leading "!"
// negates the pattern, and a trailing "/" restricts the pattern to
// directories. Patterns are compiled against doublestar so the whole repo
// shares one glob dialect.
func LoadFile(path, appliesTo string) (IgnoreFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return IgnoreFile{}, &werr.IgnoreError{Path: path, Err: err}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return IgnoreFile{}, &werr.IgnoreError{Path: path, Err: err}
	}

	return IgnoreFile{Path: path, AppliesTo: appliesTo, Lines: lines}, nil
}

func compileLines(root string, rawLines []string) ([]compiledLine, error) {
	var out []compiledLine
	for _, raw := range rawLines {
		line := raw
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Unescape a literal leading '#' or '!' escaped with backslash.
		negate := false
		switch {
		case strings.HasPrefix(line, "\\#") || strings.HasPrefix(line, "\\!"):
			line = line[1:]
		case strings.HasPrefix(line, "!"):
			negate = true
			line = line[1:]
		}

		dirOnly := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		anchored := strings.HasPrefix(line, "/") || strings.Contains(line, "/")
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}

		if _, err := doublestar.Match(line, "probe"); err != nil {
			return nil, &werr.GlobParseError{Pattern: line, Err: err}
		}

		out = append(out, compiledLine{
			pattern:  line,
			negate:   negate,
			dirOnly:  dirOnly,
			anchored: anchored,
			root:     root,
		})
	}
	return out, nil
}
