package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
)

// newTransformCommand runs one image command. Arity is checked by the service so the
// reply matches what any other client would get.
func newTransformCommand(opts *rootOptions, command, use, short string) *cobra.Command {
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.printReply(opts.svc.Execute(cmd.Context(), append([]string{command}, args...)))
		},
	}

	return positionalArgs(cmd)
}

func newExecCommand(opts *rootOptions) *cobra.Command {
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:     "exec COMMAND [ARGS...]",
		Short:   "Execute a raw command, e.g. exec IMAGE.ROTATE img 90",
		Args:    cobra.MinimumNArgs(1),
		Example: "  imagectl exec IMAGE.THUMBNAIL img 64 64",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.printReply(opts.svc.Execute(cmd.Context(), args))
		},
	}

	return positionalArgs(cmd)
}

// positionalArgs stops flag parsing at the first argument, so negative numbers
// such as an angle of -90 reach the command unchanged. Flags go before the key.
func positionalArgs(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func newPutCommand(opts *rootOptions) *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "put KEY FILE",
		Short: "Store FILE under KEY, reading stdin if FILE is -",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)

			if args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}

			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			if err := opts.svc.Store(cmd.Context(), domain.NewBlob(domain.BlobKey(args[0]), data)); err != nil {
				return fmt.Errorf("store: %w", err)
			}

			return opts.printReply(domain.OKReply())
		},
	}
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	//nolint:exhaustruct
	return &cobra.Command{
		Use:   "get KEY [FILE]",
		Short: "Write the value of KEY to FILE, or to stdout",
		Args:  cobra.RangeArgs(1, 2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := opts.svc.Fetch(cmd.Context(), domain.BlobKey(args[0]))
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			if len(args) == 1 {
				if _, err := stored.WriteTo(opts.stdout); err != nil {
					return fmt.Errorf("write: %w", err)
				}

				return nil
			}

			if err := os.WriteFile(args[1], stored.Bytes(), 0o644); err != nil { //nolint:gosec,mnd
				return fmt.Errorf("write %s: %w", args[1], err)
			}

			return nil
		},
	}
}

func newJournalCommand(opts *rootOptions) *cobra.Command {
	var limit int

	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "journal KEY",
		Short: "List the commands recorded for KEY, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := opts.svc.Journal(cmd.Context(), domain.BlobKey(args[0]), limit)
			if err != nil {
				return fmt.Errorf("journal: %w", err)
			}

			enc := json.NewEncoder(opts.stdout)
			enc.SetIndent("", "  ")

			if err := enc.Encode(entries); err != nil {
				return fmt.Errorf("encode: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries, 0 for the configured default")

	return cmd
}
