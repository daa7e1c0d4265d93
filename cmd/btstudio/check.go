package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/btstudio/core"
	"github.com/oxhq/btstudio/internal/config"
	"github.com/oxhq/btstudio/internal/journal"
	"github.com/oxhq/btstudio/internal/project"
	"github.com/oxhq/btstudio/internal/session"
	"github.com/oxhq/btstudio/models"
)

func newCheckCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check <manifest|dir>",
		Short: "Load a project and report what it contains and what is wrong with it",
		Long: `Loads the alphabet, libraries and trees of a project and prints their counts
followed by the cardinality, orphan and link diagnostics of every branch. Given a
directory, every *.btproj.yaml below it is checked.

The command fails when a project does not load. With --strict it also fails
when a diagnostic of severity error is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := discoverManifests(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var errs []error
			for _, manifest := range manifests {
				if err := a.check(cmd, manifest, strict); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when validation reports errors")
	return cmd
}

// discoverManifests returns path itself, or the manifests below it when it is a directory.
func discoverManifests(ctx context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return []string{path}, nil
	}
	manifests, err := core.NewFileWalker().Find(ctx, core.FileScope{
		Path:    path,
		Include: []string{"*" + config.ManifestSuffix},
		Exclude: []string{".git", ".btstudio"},
	})
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, fmt.Errorf("no *%s files below %s", config.ManifestSuffix, path)
	}
	return manifests, nil
}

func (a *app) check(cmd *cobra.Command, manifest string, strict bool) error {
	return a.withProject(cmd.Context(), models.KindCheck, manifest,
		func(_ *session.Context, p *project.Project, _ *journal.Recorder) (any, error) {
			out := cmd.OutOrStdout()
			nodeTypes := 0
			for _, lib := range p.Catalog.Libraries() {
				nodeTypes += lib.Len()
			}
			fmt.Fprintf(out, "project %s: %d classes, %d libraries, %d node types, %d branches, %d nodes\n",
				p.Name(), p.Alphabet.Len(), p.Catalog.Len(), nodeTypes, p.Branches.Len(), p.Store.Len())

			diags := p.Validate()
			errs := 0
			for _, d := range diags {
				if d.Severity == project.SeverityError {
					errs++
				}
				fmt.Fprintln(out, d)
			}
			fmt.Fprintf(out, "load: %s\n", a.counter)
			if strict && errs > 0 {
				return diags, fmt.Errorf("%s: validation found %d errors", p.Name(), errs)
			}
			return diags, nil
		})
}
