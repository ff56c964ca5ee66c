package classifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// Labels maps category ids to names, one name per line of a labels file.
type Labels struct {
	names []string
}

// ParseLabels reads one label per line; line n (0-based) names category n.
func ParseLabels(r io.Reader) (*Labels, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Labels{names: names}, nil
}

// LoadLabels reads a labels file. An empty path yields empty labels.
func LoadLabels(path string) (*Labels, error) {
	if path == "" {
		return &Labels{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.ConfigError("failed to open labels file").WithCause(err).WithContext("path", path).Build()
	}
	defer func() { _ = f.Close() }()
	l, err := ParseLabels(f)
	if err != nil {
		return nil, errors.ConfigError("failed to read labels file").WithCause(err).WithContext("path", path).Build()
	}
	return l, nil
}

// Name returns the label for id, or "unknown".
func (l *Labels) Name(id int) string {
	if l == nil || id < 0 || id >= len(l.names) || l.names[id] == "" {
		return "unknown"
	}
	return l.names[id]
}

// Len returns the number of labels.
func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Describe formats a result as "label (NN%)".
func (l *Labels) Describe(r Result) string {
	return fmt.Sprintf("%s (%d%%)", l.Name(r.CategoryID), int(r.Confidence*100))
}
