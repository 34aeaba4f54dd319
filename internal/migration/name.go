// Package migration parses the numbered-migration naming convention and the
// dependency declarations inside migration files.
//
// A migration file is named NNNN_slug.ext. The numeric prefix orders the
// migrations of one app; the dependencies list inside the file chains them.
// Names without a numeric prefix (__init__.py, helpers) are not migrations
// for sequencing purposes and fail to parse rather than sorting as zero.
package migration

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultWidth is the zero-padded width of newly formed sequence numbers.
const DefaultWidth = 4

// ErrParse matches every *ParseError.
var ErrParse = errors.New("invalid migration name")

// ParseError reports a file name that carries no usable sequence number.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid migration name %q: %s", e.Name, e.Reason)
}

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

var numberedName = regexp.MustCompile(`^([0-9]+)_([^.]+)$`)

// Name is a parsed migration file name.
type Name struct {
	// Number is the sequence number encoded by Digits.
	Number int

	// Digits is the numeric prefix exactly as written, padding included.
	Digits string

	// Slug is everything after the first underscore.
	Slug string

	// Ext is the file extension including the dot, or "".
	Ext string
}

// ParseName parses a migration file name or path.
func ParseName(filename string) (Name, error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	m := numberedName.FindStringSubmatch(stem)
	if m == nil {
		return Name{}, &ParseError{Name: base, Reason: "expected a numeric prefix followed by _ and a name"}
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Name{}, &ParseError{Name: base, Reason: "sequence number out of range"}
	}

	return Name{Number: n, Digits: m[1], Slug: m[2], Ext: ext}, nil
}

// Stem returns the migration name as referenced from dependency tuples.
func (n Name) Stem() string {
	return n.Digits + "_" + n.Slug
}

// Filename returns the stem with its extension.
func (n Name) Filename() string {
	return n.Stem() + n.Ext
}

// WithNumber returns n renumbered to num, zero-padded to width.
func (n Name) WithNumber(num, width int) Name {
	n.Number = num
	n.Digits = formatNumber(num, width)
	return n
}

// ParseSequenceNumber returns the sequence number of a migration file name.
func ParseSequenceNumber(filename string) (int, error) {
	n, err := ParseName(filename)
	if err != nil {
		return 0, err
	}
	return n.Number, nil
}

// StemName returns the file name without directory or extension.
func StemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NextSequence returns the sequence number following existingMax.
func NextSequence(existingMax int) int {
	return existingMax + 1
}

// FormatName forms a migration stem from a number and slug.
func FormatName(number, width int, slug string) string {
	return formatNumber(number, width) + "_" + slug
}

func formatNumber(n, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	return fmt.Sprintf("%0*d", width, n)
}
