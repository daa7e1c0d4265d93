package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/oxhq/btstudio/core"
	"github.com/oxhq/btstudio/internal/config"
	"github.com/oxhq/btstudio/internal/journal"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/project"
	"github.com/oxhq/btstudio/internal/report"
	"github.com/oxhq/btstudio/internal/session"
	"github.com/oxhq/btstudio/models"
)

const version = "0.4.0"

// app carries what the persistent flags and PersistentPreRunE set up for every command.
type app struct {
	logLevel string
	jsonLogs bool
	envFiles []string

	cfg     *config.Config
	log     *zap.Logger
	counter *logging.Counter
}

func newRootCmd() *cobra.Command {
	a := &app{counter: &logging.Counter{}}

	root := &cobra.Command{
		Use:          "btstudio",
		Short:        "Inspect and refactor behavior tree projects",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load(a.envFiles...)
			level := a.cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = a.logLevel
			}
			log, err := logging.New(level, a.jsonLogs, a.counter)
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.SetGlobalNormalizationFunc(normalizeFlag)

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error); overrides BTSTUDIO_LOG_LEVEL")
	pf.BoolVar(&a.jsonLogs, "json-logs", false, "Write logs as JSON")
	pf.StringSliceVar(&a.envFiles, "env-file", nil, "Environment files to load (default .env)")

	root.AddCommand(
		newCheckCmd(a),
		newFmtCmd(a),
		newLsCmd(a),
		newRenameNodeCmd(a),
		newRenameBranchCmd(a),
		newJournalCmd(a),
	)
	return root
}

// normalizeFlag accepts --diff_context for --diff-context.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// runFunc does a command's work on the opened project and returns the diagnostics to journal.
type runFunc func(s *session.Context, p *project.Project, rec *journal.Recorder) (any, error)

// withProject opens the manifest in a fresh session, runs fn and records the run in the journal.
func (a *app) withProject(ctx context.Context, kind, manifest string, fn runFunc) error {
	j, err := journal.Open(a.cfg.JournalDSN, a.cfg.RetentionRuns, a.log)
	if err != nil {
		a.log.Warn("journal disabled", zap.Error(err))
		j, _ = journal.Open("", 0, a.log)
	}
	defer j.Close()

	if abs, err := filepath.Abs(manifest); err == nil {
		manifest = abs
	}
	a.counter.Reset()
	rec := j.Begin(kind, manifest)

	s := session.New(a.cfg, a.log)
	defer s.Close()

	var diagnostics any
	p, runErr := s.Open(manifest)
	if runErr == nil {
		recordInputs(p, rec)
		diagnostics, runErr = fn(s, p, rec)
	}

	if err := rec.Finish(ctx, runErr, a.counter, diagnostics); err != nil {
		a.log.Warn("run not journaled", zap.String("run", rec.ID()), zap.Error(err))
	}
	return runErr
}

// recordInputs notes every library and tree file the project was loaded from.
func recordInputs(p *project.Project, rec *journal.Recorder) {
	for _, path := range p.LibLayout.Files {
		data, _ := os.ReadFile(path)
		rec.File(path, models.RoleLibrary, models.ActionRead, data)
	}
	for _, path := range p.TreeLayout.Files {
		data, _ := os.ReadFile(path)
		rec.File(path, models.RoleTree, models.ActionRead, data)
	}
}

// writer builds the transactional writer. A relative log directory lives next to the manifest.
func (a *app) writer(p *project.Project) (*core.TransactionManager, error) {
	dir := a.cfg.TxLogDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.Manifest.Dir(), dir)
	}
	wcfg := core.DefaultAtomicConfig()
	wcfg.UseFsync = a.cfg.Fsync
	wcfg.BackupOriginal = a.cfg.Backup
	return core.NewTransactionManager(dir, core.NewAtomicWriter(wcfg, a.log), a.log)
}

// outputOptions are shared by the commands that produce new file content.
type outputOptions struct {
	write       bool
	diff        bool
	diffContext int
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.write, "write", "w", false, "Write the result to disk")
	cmd.Flags().BoolVarP(&o.diff, "diff", "d", false, "Print a unified diff of every changed file")
	cmd.Flags().IntVarP(&o.diffContext, "diff-context", "C", 3, "Lines of context for --diff")
}

// emit compares the rendered project with disk, prints what was asked for and, with --write,
// saves through a transaction.
func (a *app) emit(cmd *cobra.Command, s *session.Context, p *project.Project, rec *journal.Recorder, opts outputOptions) error {
	if err := s.Do("collect garbage", func(p *project.Project) error {
		p.CollectGarbage()
		return nil
	}); err != nil {
		return err
	}
	files, err := p.Render()
	if err != nil {
		return err
	}
	changes, err := report.Compare(files, p.Manifest.Dir())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.diff {
		if err := report.WriteDiffs(out, changes, opts.diffContext); err != nil {
			return err
		}
	} else {
		for _, c := range report.Changed(changes) {
			fmt.Fprintf(out, "%s\t%s\n", c.Status, c.Name)
		}
	}

	if opts.write {
		tm, err := a.writer(p)
		if err != nil {
			return err
		}
		written, err := s.Save(tm)
		if err != nil {
			return err
		}
		recordOutputs(p, rec, changes, written)
		fmt.Fprintf(out, "wrote %d files\n", len(written))
		return nil
	}
	fmt.Fprintln(out, report.Summary(changes))
	return nil
}

func recordOutputs(p *project.Project, rec *journal.Recorder, changes []report.Change, written []string) {
	done := make(map[string]bool, len(written))
	for _, path := range written {
		done[path] = true
	}
	libs := make(map[string]bool, len(p.LibLayout.Files))
	for _, path := range p.LibLayout.Files {
		libs[path] = true
	}
	for _, c := range changes {
		action := models.ActionUnchanged
		if done[c.Path] {
			action = models.ActionWritten
		}
		role := models.RoleTree
		switch {
		case libs[c.Path]:
			role = models.RoleLibrary
		case filepath.Ext(c.Path) == ".dgm":
			role = models.RoleDiagram
		}
		rec.File(c.Path, role, action, c.New)
	}
}
