package main

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"blamer/internal/blame"

	"github.com/fatih/color"
)

const shortCommitLen = 8

func shortCommit(id string) string {
	if len(id) > shortCommitLen {
		return id[:shortCommitLen]
	}
	return id
}

func formatTime(t int64) string {
	if t == blame.EmptyInteger {
		return blame.Empty
	}
	return time.Unix(t, 0).UTC().Format("2006-01-02")
}

// printBlame writes one row per annotated line. If source is not nil every
// line of it is printed, annotated or not.
func printBlame(w io.Writer, fb *blame.FileBlame, source io.Reader) error {
	commit := color.New(color.FgYellow)
	author := color.New(color.FgGreen)
	date := color.New(color.FgBlue)
	lineNo := color.New(color.FgCyan)

	row := func(line int, text string) {
		lineNo.Fprintf(w, "%5d ", line)
		commit.Fprintf(w, "%-8s ", shortCommit(fb.Commit(line)))
		author.Fprintf(w, "%-20s ", fb.Name(line))
		date.Fprintf(w, "%-10s", formatTime(fb.Time(line)))
		if text != "" {
			fmt.Fprintf(w, " | %s", text)
		}
		fmt.Fprintln(w)
	}

	if source == nil {
		for line := range fb.Lines() {
			row(line, "")
		}
		return nil
	}

	scanner := bufio.NewScanner(source)
	line := 0
	for scanner.Scan() {
		line++
		row(line, scanner.Text())
	}
	return scanner.Err()
}

// printAuthors summarizes how many lines each author owns.
func printAuthors(w io.Writer, fb *blame.FileBlame) {
	counts := make(map[string]int)
	var order []string
	for line := range fb.Lines() {
		key := fmt.Sprintf("%s <%s>", fb.Name(line), fb.Email(line))
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s: %d annotated lines\n", fb.FileName(), fb.Len())
	for _, key := range order {
		fmt.Fprintf(w, "  %4d  %s\n", counts[key], key)
	}
}
