// cmd/blamer/main.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"blamer/internal/blame"
	"blamer/internal/diff"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	dbPath    string
	serverURL string
	verbose   bool
	logger    *zap.Logger
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return config.Build()
}

// readRecord loads a record from a JSON or binary encoded file.
func readRecord(path string) (*blame.FileBlame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, []byte("FBLM")) {
		fb, err := blame.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return fb, nil
	}

	fb := blame.New("")
	if err := json.Unmarshal(data, fb); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return fb, nil
}

func writeRecord(w io.Writer, fb *blame.FileBlame, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fb)
	case "binary":
		data, err := fb.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q (want json or binary)", format)
	}
}

// writeRecords writes every record of blames as one JSON array.
func writeRecords(w io.Writer, blames *blame.Blames, format string) error {
	if format != "json" {
		return fmt.Errorf("format %q cannot hold several records (want json)", format)
	}
	records := make([]*blame.FileBlame, 0, blames.Size())
	for fb := range blames.Records() {
		records = append(records, fb)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "blamer",
		Short: "Blamer stores and merges per-line blame records",
		Long: `Blamer keeps, for every file of a repository, which commit last touched
each line together with its author and commit time. Records produced by
separate runs can be imported and are merged line by line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.logger, err = newLogger(opts.verbose)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", ".blamer", "Directory of the local blame database")
	rootCmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", "", "Use a blamer server instead of the local database")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	withBackend := func(fn func(b backend) error) error {
		b, err := openBackend(opts.dbPath, opts.serverURL, opts.logger)
		if err != nil {
			return err
		}
		defer b.Close()
		return fn(b)
	}

	var importCmd = &cobra.Command{
		Use:   "import [records...]",
		Short: "Merge blame records into the store",
		Long: `Reads JSON or binary encoded blame records and merges each into the stored record of the same file.
With --replace the stored record is overwritten instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replace, _ := cmd.Flags().GetBool("replace")

			return withBackend(func(b backend) error {
				for _, path := range args {
					fb, err := readRecord(path)
					if err != nil {
						return err
					}
					if replace {
						if err := b.Put(cmd.Context(), fb); err != nil {
							return fmt.Errorf("importing %s: %w", path, err)
						}
						opts.logger.Info("replaced record",
							zap.String("path", path),
							zap.String("file", fb.FileName()),
						)
						fmt.Fprintf(cmd.OutOrStdout(), "Replaced %s: %d lines\n", fb.FileName(), fb.Len())
						continue
					}
					merged, err := b.Merge(cmd.Context(), fb)
					if err != nil {
						return fmt.Errorf("importing %s: %w", path, err)
					}
					opts.logger.Info("imported record",
						zap.String("path", path),
						zap.String("file", merged.FileName()),
					)
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d lines (%d total)\n",
						merged.FileName(), fb.Len(), merged.Len())
				}
				return nil
			})
		},
	}
	importCmd.Flags().Bool("replace", false, "Overwrite stored records instead of merging into them")

	var showCmd = &cobra.Command{
		Use:   "show <file>",
		Short: "Show the blame of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath, _ := cmd.Flags().GetString("source")
			authors, _ := cmd.Flags().GetBool("authors")

			return withBackend(func(b backend) error {
				fb, err := b.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if authors {
					printAuthors(cmd.OutOrStdout(), fb)
					return nil
				}
				if sourcePath == "" {
					return printBlame(cmd.OutOrStdout(), fb, nil)
				}
				src, err := os.Open(sourcePath)
				if err != nil {
					return fmt.Errorf("opening source: %w", err)
				}
				defer src.Close()
				return printBlame(cmd.OutOrStdout(), fb, src)
			})
		},
	}
	showCmd.Flags().String("source", "", "Print the file's content next to its blame")
	showCmd.Flags().Bool("authors", false, "Summarize annotated lines per author")

	var filesCmd = &cobra.Command{
		Use:   "files",
		Short: "List files with stored blame records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(b backend) error {
				files, err := b.Files(cmd.Context())
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No blame records found")
					return nil
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			})
		},
	}

	var exportCmd = &cobra.Command{
		Use:   "export [file]",
		Short: "Write the stored record of a file",
		Long:  `Writes the stored record of a file. With --all every stored record is written as a JSON array.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all, _ := cmd.Flags().GetBool("all"); all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			all, _ := cmd.Flags().GetBool("all")

			return withBackend(func(b backend) error {
				var buf bytes.Buffer
				if all {
					blames, err := b.Load(cmd.Context())
					if err != nil {
						return err
					}
					if err := writeRecords(&buf, blames, format); err != nil {
						return err
					}
				} else {
					fb, err := b.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if err := writeRecord(&buf, fb, format); err != nil {
						return err
					}
				}
				if output == "" {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				return os.WriteFile(output, buf.Bytes(), 0644)
			})
		},
	}
	exportCmd.Flags().StringP("format", "f", "json", "Output format (json, binary)")
	exportCmd.Flags().StringP("output", "o", "", "Output file, stdout if empty")
	exportCmd.Flags().Bool("all", false, "Export every stored record")

	var mergeCmd = &cobra.Command{
		Use:   "merge <record> <other>",
		Short: "Merge two record files without touching the store",
		Long:  `Merges the second record into the first and prints the result. Lines present in both take the second record's attribution.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			fb, err := readRecord(args[0])
			if err != nil {
				return err
			}
			other, err := readRecord(args[1])
			if err != nil {
				return err
			}
			if err := fb.Merge(other); err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), fb, format)
		},
	}
	mergeCmd.Flags().StringP("format", "f", "json", "Output format (json, binary)")

	var carryCmd = &cobra.Command{
		Use:   "carry <file>",
		Short: "Carry a stored record over to edited content",
		Long: `Diffs the content the record was computed for against its edited version and
prints the record renumbered for the edited content. Changed lines lose their attribution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPath, _ := cmd.Flags().GetString("old")
			newPath, _ := cmd.Flags().GetString("new")
			format, _ := cmd.Flags().GetString("format")

			oldContent, err := os.ReadFile(oldPath)
			if err != nil {
				return err
			}
			newContent, err := os.ReadFile(newPath)
			if err != nil {
				return err
			}

			return withBackend(func(b backend) error {
				fb, err := b.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result := diff.Diff(oldContent, newContent)
				opts.logger.Debug("carrying blame",
					zap.String("file", fb.FileName()),
					zap.Int("additions", result.Stats.Additions),
					zap.Int("deletions", result.Stats.Deletions),
				)
				return writeRecord(cmd.OutOrStdout(), fb.Remap(result.LineMapping()), format)
			})
		},
	}
	carryCmd.Flags().String("old", "", "Content the stored record describes")
	carryCmd.Flags().String("new", "", "Edited content")
	carryCmd.Flags().StringP("format", "f", "json", "Output format (json, binary)")
	carryCmd.MarkFlagRequired("old")
	carryCmd.MarkFlagRequired("new")

	var deleteCmd = &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete the stored record of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(b backend) error {
				if err := b.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted blame of %s\n", args[0])
				return nil
			})
		},
	}

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(carryCmd)
	rootCmd.AddCommand(deleteCmd)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
