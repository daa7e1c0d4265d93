package main

import (
	"github.com/spf13/cobra"

	"github.com/oxhq/btstudio/internal/journal"
	"github.com/oxhq/btstudio/internal/project"
	"github.com/oxhq/btstudio/internal/session"
	"github.com/oxhq/btstudio/models"
)

func newFmtCmd(a *app) *cobra.Command {
	var opts outputOptions
	cmd := &cobra.Command{
		Use:   "fmt <manifest>",
		Short: "Rewrite project files in canonical form",
		Long: `Renders every library, tree and diagram file the way btstudio saves them and
lists the files whose content would change. Nodes no branch reaches are dropped.

Nothing is written unless --write is given; writes go through a transaction that
is rolled back when any file fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProject(cmd.Context(), models.KindFormat, args[0],
				func(s *session.Context, p *project.Project, rec *journal.Recorder) (any, error) {
					return nil, a.emit(cmd, s, p, rec, opts)
				})
		},
	}
	opts.register(cmd)
	return cmd
}
