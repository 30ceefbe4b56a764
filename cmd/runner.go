package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/ferrovax/crate/internal/codec"
	"github.com/ferrovax/crate/internal/shared"
	"github.com/ferrovax/crate/internal/sync"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	adapter codec.Adapter
	db      *sql.DB
	engine  *sync.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Logger  *log.Logger
	Output  io.Writer
	Adapter codec.Adapter
	DB      *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Adapter == nil {
		opts.Adapter = codec.NewTaglibAdapter()
	}

	return &Runner{
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		adapter: opts.Adapter,
		db:      opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, libraryCommand, syncCommand, tagCommand, noteCommand, rateCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewWorkerDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run 'crate setup database' first?): %w", err)
	}
	r.db = db
	return db, nil
}

// syncEngine builds the sync engine over the open database on first use.
func (r *Runner) syncEngine() (*sync.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	r.engine = sync.NewEngine(db, r.adapter, r.logger, r.config.Sync.FailureListCap)
	return r.engine, nil
}

// Close releases the database handle if the Runner opened one.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// drainProgress prints pass updates until the channel closes, then signals done.
func (r *Runner) drainProgress(prog <-chan sync.ProgressUpdate, done chan<- struct{}) {
	for update := range prog {
		switch update.Phase {
		case sync.PhaseScanning, sync.PhaseReconciling, sync.PhaseWriting:
			r.writePlain("  %3d%% %s\n", update.Percent(), update.Message)
		case sync.PhaseFailed:
			r.writePlain("  %s\n", update.Message)
		}
	}
	close(done)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
