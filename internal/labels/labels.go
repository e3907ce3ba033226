// Package labels maps detector class indices to human-readable names.
package labels

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownClass is returned when a class index has no entry in the table.
var ErrUnknownClass = errors.New("unknown class")

// Table is an ordered list of class names. Offset is subtracted from a class
// id before lookup (SSD graphs reserve id 0 for background, so they use 1).
type Table struct {
	names  []string
	Offset int
}

func New(names []string, offset int) *Table {
	return &Table{names: names, Offset: offset}
}

// Load reads the labels used to train the model from the given text file.
// It should contain one label per line. Line n names class n, so blank lines
// are kept as empty entries.
func Load(file string, offset int) (*Table, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening labels file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	var names []string
	for scanner.Scan() {
		names = append(names, strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file: %w", err)
	}

	return New(names, offset), nil
}

// Name resolves a class id.
func (t *Table) Name(classID int) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, classID)
	}
	idx := classID - t.Offset
	if idx < 0 || idx >= len(t.names) || t.names[idx] == "" {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, classID)
	}
	return t.names[idx], nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
