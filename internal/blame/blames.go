package blame

import (
	"iter"
	"maps"
	"slices"

	"blamer/internal/errors"
)

// Blames collects the FileBlame records of a repository, one per file.
type Blames struct {
	files map[string]*FileBlame
}

func NewBlames() *Blames {
	return &Blames{files: make(map[string]*FileBlame)}
}

// Add stores a copy of fb, merging it into the record already held for the
// same file. fb itself is never modified by later calls.
func (b *Blames) Add(fb *FileBlame) error {
	if fb == nil {
		return errors.InvalidArgument("cannot add a nil blame record")
	}
	existing, ok := b.files[fb.FileName()]
	if !ok {
		b.files[fb.FileName()] = fb.Clone()
		return nil
	}
	return existing.Merge(fb)
}

// AddAll adds every record of other.
func (b *Blames) AddAll(other *Blames) error {
	for _, fb := range other.files {
		if err := b.Add(fb); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether a record exists for fileName. The name is
// normalized the same way New does.
func (b *Blames) Contains(fileName string) bool {
	_, ok := b.files[normalizeFileName(fileName)]
	return ok
}

func (b *Blames) Get(fileName string) (*FileBlame, bool) {
	fb, ok := b.files[normalizeFileName(fileName)]
	return fb, ok
}

// Files returns the file names in ascending order.
func (b *Blames) Files() []string {
	return slices.Sorted(maps.Keys(b.files))
}

// Records yields the records ordered by file name.
func (b *Blames) Records() iter.Seq[*FileBlame] {
	return func(yield func(*FileBlame) bool) {
		for _, name := range b.Files() {
			if !yield(b.files[name]) {
				return
			}
		}
	}
}

func (b *Blames) Size() int {
	return len(b.files)
}

func (b *Blames) IsEmpty() bool {
	return len(b.files) == 0
}
