package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/config"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
	"github.com/mkrupp/homecase-imagekv/internal/repo/blob"
	"github.com/mkrupp/homecase-imagekv/internal/repo/journal"
	"github.com/mkrupp/homecase-imagekv/internal/svc/imagesvc"
)

const configPrefix = "IMAGEKV_IMAGECTL"

// errReply is returned by commands whose reply was an error, so the process exits non-zero.
var errReply = errors.New("error reply")

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig     `envPrefix:"LOG_"`
	Store   blob.StoreConfig         `envPrefix:"STORE_"`
	Journal journal.RepositoryConfig `envPrefix:"JOURNAL_"`
	Image   imagesvc.ImageConfig     `envPrefix:"IMAGE_"`
}

type rootOptions struct {
	cfg Config

	backend   string
	redisAddr string
	basedir   string
	journal   string
	logLevel  string

	svc    *imagesvc.BlobImageService
	stdout io.Writer
	stderr io.Writer
}

// execute runs the command line args and closes the image service on every path.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	//nolint:exhaustruct
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReply) {
		fmt.Fprintln(stderr, "Error:", err)
	}

	return errors.Join(err, opts.close())
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:           "imagectl",
		Short:         "Transform images stored under keys in place",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.open(cmd)
		},
	}

	cmd.SetOut(opts.stdout)
	cmd.SetErr(opts.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.backend, "store", "redis", "blob store backend (redis|filesystem)")
	flags.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis server address")
	flags.StringVar(&opts.basedir, "basedir", "var/storage/blob", "filesystem store root directory")
	flags.StringVar(&opts.journal, "journal", "", "journal database path, or \"none\" to disable")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(
		newTransformCommand(opts, imagesvc.CommandRotate, "rotate KEY DEGREES", "Rotate clockwise by DEGREES"),
		newTransformCommand(opts, imagesvc.CommandSwirl, "swirl KEY DEGREES", "Swirl around the center by DEGREES"),
		newTransformCommand(opts, imagesvc.CommandBlur, "blur KEY RADIUS SIGMA", "Gaussian blur"),
		newTransformCommand(opts, imagesvc.CommandThumbnail, "thumbnail KEY WIDTH HEIGHT", "Scale to exactly WIDTHxHEIGHT"),
		newTransformCommand(opts, imagesvc.CommandType, "type KEY", "Print the format of the stored image"),
		newExecCommand(opts),
		newPutCommand(opts),
		newGetCommand(opts),
		newJournalCommand(opts),
	)

	return cmd
}

// open loads the environment configuration, applies explicitly set flags on top
// and creates the image service.
func (opts *rootOptions) open(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if err := config.Parse(ctx, &opts.cfg, configPrefix); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	flags := cmd.Flags()

	if flags.Changed("store") {
		opts.cfg.Store.Backend = opts.backend
	}

	if flags.Changed("redis-addr") {
		opts.cfg.Store.Redis.Addr = opts.redisAddr
	}

	if flags.Changed("basedir") {
		opts.cfg.Store.FileSystem.Basedir = opts.basedir
	}

	switch {
	case opts.journal == "none":
		opts.cfg.Journal.Backend = "none"
	case opts.journal != "":
		opts.cfg.Journal.Backend = "sqlite"
		opts.cfg.Journal.SQLite.DatabasePath = opts.journal
	}

	if flags.Changed("log-level") || !envSet("LOG_LEVEL") {
		opts.cfg.Log.Level = opts.logLevel
	}

	opts.cfg.Log.OutputHandle = opts.stderr

	logging.Configure(ctx, opts.cfg.Log, "imagekv.imagectl")

	storeFactory, err := blob.NewStoreFactory(opts.cfg.Store)
	if err != nil {
		return fmt.Errorf("store factory: %w", err)
	}

	journalFactory, err := journal.NewRepositoryFactory(opts.cfg.Journal)
	if err != nil {
		return fmt.Errorf("journal factory: %w", err)
	}

	opts.svc, err = imagesvc.NewBlobImageService(ctx, storeFactory, journalFactory, codec.New(), nil, opts.cfg.Image)
	if err != nil {
		return fmt.Errorf("new image service: %w", err)
	}

	return nil
}

func (opts *rootOptions) close() error {
	if opts.svc == nil {
		return nil
	}

	err := opts.svc.Close()
	opts.svc = nil

	if err != nil {
		return fmt.Errorf("close image service: %w", err)
	}

	return nil
}

// envSet reports whether name is set under the command's namespace or the application's.
func envSet(name string) bool {
	for _, prefix := range []string{configPrefix, "IMAGEKV"} {
		if _, ok := os.LookupEnv(prefix + "_" + name); ok {
			return true
		}
	}

	return false
}

// printReply writes reply the way an interactive client shows it.
func (opts *rootOptions) printReply(reply domain.Reply) error {
	if reply.IsError() {
		fmt.Fprintln(opts.stderr, reply.String())

		return fmt.Errorf("%w: %s", errReply, reply.Text)
	}

	fmt.Fprintln(opts.stdout, reply.String())

	return nil
}
