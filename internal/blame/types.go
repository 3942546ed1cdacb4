package blame

const (
	// Empty is returned for string attributes that were never set.
	Empty = "-"
	// EmptyInteger is returned for the commit time when it was never set.
	EmptyInteger int64 = -1
)

// LineAttribution bundles everything known about the commit that last
// touched a single line.
type LineAttribution struct {
	Commit string `json:"commit"`
	Author string `json:"author"`
	Email  string `json:"email"`
	Time   int64  `json:"time"`
}

func emptyAttribution() LineAttribution {
	return LineAttribution{
		Commit: Empty,
		Author: Empty,
		Email:  Empty,
		Time:   EmptyInteger,
	}
}

// Box interface defines how we store/retrieve blame records
type Box interface {
	Put(fb *FileBlame) error
	Get(fileName string) (*FileBlame, error)
	Merge(fb *FileBlame) (*FileBlame, error)
	Delete(fileName string) error
	Files() ([]string, error)
	Load() (*Blames, error)
}
