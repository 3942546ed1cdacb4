// internal/diff/diff.go
package diff

import (
	"bytes"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int // 1-based, 0 for additions
	NewNum  int // 1-based, 0 for deletions
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Stats counts the changed lines of a diff.
type Stats struct {
	Additions int
	Deletions int
	Unchanged int
}

// Result is the line-by-line edit script turning old content into new.
type Result struct {
	Lines []Line
	Stats Stats
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

// Diff generates a line-by-line diff between two contents
func Diff(oldContent, newContent []byte) *Result {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	lcs := computeLCS(oldLines, newLines)

	// Walk the LCS matrix backwards, then reverse.
	var lines []Line
	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && bytes.Equal(oldLines[i-1], newLines[j-1]):
			lines = append(lines, Line{Type: Context, Content: string(oldLines[i-1]), OldNum: i, NewNum: j})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			lines = append(lines, Line{Type: Addition, Content: string(newLines[j-1]), NewNum: j})
			j--
		default:
			lines = append(lines, Line{Type: Deletion, Content: string(oldLines[i-1]), OldNum: i})
			i--
		}
	}

	result := &Result{Lines: make([]Line, 0, len(lines))}
	for k := len(lines) - 1; k >= 0; k-- {
		line := lines[k]
		switch line.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		default:
			result.Stats.Unchanged++
		}
		result.Lines = append(result.Lines, line)
	}
	return result
}

// computeLCS creates a matrix for longest common subsequence
func computeLCS(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := 1; i <= len(oldLines); i++ {
		for j := 1; j <= len(newLines); j++ {
			if bytes.Equal(oldLines[i-1], newLines[j-1]) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// LineMapping maps every unchanged line of the new content to its line
// number in the old content.
func (r *Result) LineMapping() map[int]int {
	mapping := make(map[int]int, r.Stats.Unchanged)
	for _, line := range r.Lines {
		if line.Type == Context {
			mapping[line.NewNum] = line.OldNum
		}
	}
	return mapping
}
