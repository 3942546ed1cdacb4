package blame

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"blamer/internal/errors"
)

// FileBlame stores the blame attribution of every annotated line of a
// single file. Only lines that had at least one attribute set are stored;
// all other lines read back the Empty / EmptyInteger defaults.
//
// A FileBlame is not safe for concurrent use.
type FileBlame struct {
	fileName string
	lines    map[int]LineAttribution
}

// New creates an empty record for fileName. Backslashes in the name are
// converted to forward slashes.
func New(fileName string) *FileBlame {
	return &FileBlame{
		fileName: normalizeFileName(fileName),
		lines:    make(map[int]LineAttribution),
	}
}

func normalizeFileName(fileName string) string {
	return strings.ReplaceAll(fileName, "\\", "/")
}

func (fb *FileBlame) FileName() string {
	return fb.fileName
}

func (fb *FileBlame) update(line int, set func(*LineAttribution)) {
	if fb.lines == nil {
		fb.lines = make(map[int]LineAttribution)
	}
	attr, ok := fb.lines[line]
	if !ok {
		attr = emptyAttribution()
	}
	set(&attr)
	fb.lines[line] = attr
}

// SetCommit sets the ID of the commit that last changed line.
func (fb *FileBlame) SetCommit(line int, id string) {
	fb.update(line, func(a *LineAttribution) { a.Commit = id })
}

// SetName sets the author name of line.
func (fb *FileBlame) SetName(line int, name string) {
	fb.update(line, func(a *LineAttribution) { a.Author = name })
}

// SetEmail sets the author email of line.
func (fb *FileBlame) SetEmail(line int, email string) {
	fb.update(line, func(a *LineAttribution) { a.Email = email })
}

// SetTime sets the commit time of line.
func (fb *FileBlame) SetTime(line int, t int64) {
	fb.update(line, func(a *LineAttribution) { a.Time = t })
}

// Attribution returns the attribution stored for line. The second result is
// false if no attribute was ever set for it, in which case the first result
// holds the defaults.
func (fb *FileBlame) Attribution(line int) (LineAttribution, bool) {
	attr, ok := fb.lines[line]
	if !ok {
		return emptyAttribution(), false
	}
	return attr, true
}

func (fb *FileBlame) Commit(line int) string {
	attr, _ := fb.Attribution(line)
	return attr.Commit
}

func (fb *FileBlame) Name(line int) string {
	attr, _ := fb.Attribution(line)
	return attr.Author
}

func (fb *FileBlame) Email(line int) string {
	attr, _ := fb.Attribution(line)
	return attr.Email
}

func (fb *FileBlame) Time(line int) int64 {
	attr, _ := fb.Attribution(line)
	return attr.Time
}

// LineNumbers returns the annotated lines in ascending order.
func (fb *FileBlame) LineNumbers() []int {
	return slices.Sorted(maps.Keys(fb.lines))
}

// Lines yields the annotated lines in ascending order. The sequence may be
// ranged over more than once.
func (fb *FileBlame) Lines() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, line := range fb.LineNumbers() {
			if !yield(line) {
				return
			}
		}
	}
}

func (fb *FileBlame) HasLine(line int) bool {
	_, ok := fb.lines[line]
	return ok
}

// Len returns the number of annotated lines.
func (fb *FileBlame) Len() int {
	return len(fb.lines)
}

// Merge copies every line of other into fb. A line present in both records
// takes other's attribution as a whole; lines only present in fb are left
// alone. other must describe the same file.
func (fb *FileBlame) Merge(other *FileBlame) error {
	if other == nil {
		return errors.InvalidArgument("cannot merge blame of %s with a nil record", fb.fileName)
	}
	if fb == other {
		return nil
	}
	if fb.fileName != other.fileName {
		return errors.InvalidArgument(
			"cannot merge blames of different files: this instance: %s, other instance: %s",
			fb.fileName, other.fileName)
	}
	for line, attr := range other.lines {
		fb.update(line, func(a *LineAttribution) { *a = attr })
	}
	return nil
}

// Equal reports whether both records describe the same file with identical
// attributions for identical lines.
func (fb *FileBlame) Equal(other *FileBlame) bool {
	if fb == nil || other == nil {
		return fb == other
	}
	return fb.fileName == other.fileName && maps.Equal(fb.lines, other.lines)
}

// Clone returns a deep copy of fb.
func (fb *FileBlame) Clone() *FileBlame {
	return &FileBlame{
		fileName: fb.fileName,
		lines:    maps.Clone(fb.lines),
	}
}

// Remap returns a record for edited content of the same file. mapping takes
// a line of the edited content to the line it came from; lines that are not
// mapped, or whose origin had no attribution, are left out.
func (fb *FileBlame) Remap(mapping map[int]int) *FileBlame {
	remapped := New(fb.fileName)
	for line, origin := range mapping {
		if attr, ok := fb.lines[origin]; ok {
			remapped.lines[line] = attr
		}
	}
	return remapped
}
