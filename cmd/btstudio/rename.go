package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oxhq/btstudio/internal/journal"
	"github.com/oxhq/btstudio/internal/project"
	"github.com/oxhq/btstudio/internal/session"
	"github.com/oxhq/btstudio/internal/tree"
	"github.com/oxhq/btstudio/models"
)

func newRenameNodeCmd(a *app) *cobra.Command {
	var opts outputOptions
	cmd := &cobra.Command{
		Use:   "rename-node <manifest> <library> <old> <new>",
		Short: "Rename a node descriptor and every tree node bound to it",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, oldName, newName := args[1], args[2], args[3]
			return a.withProject(cmd.Context(), models.KindRenameNode, args[0],
				func(s *session.Context, p *project.Project, rec *journal.Recorder) (any, error) {
					message := fmt.Sprintf("rename node %s/%s to %s", lib, oldName, newName)
					if err := s.Do(message, func(p *project.Project) error {
						return p.RenameNodeDesc(lib, oldName, newName)
					}); err != nil {
						return nil, err
					}
					return nil, a.emit(cmd, s, p, rec, opts)
				})
		},
	}
	opts.register(cmd)
	return cmd
}

func newRenameBranchCmd(a *app) *cobra.Command {
	var opts outputOptions
	cmd := &cobra.Command{
		Use:   "rename-branch <manifest> <file/ref> <new-ref>",
		Short: "Rename a branch and retarget the links that refer to it",
		Long: `Renames a branch. The branch is named by its tree file and reference name,
for example trees/main.xml/Approach; a relative file is resolved against the
manifest directory.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			newRef := args[2]
			return a.withProject(cmd.Context(), models.KindRenameBranch, args[0],
				func(s *session.Context, p *project.Project, rec *journal.Recorder) (any, error) {
					fq, err := resolveBranch(p, args[1])
					if err != nil {
						return nil, err
					}
					var renamed string
					if err := s.Do(fmt.Sprintf("rename branch %s to %s", fq, newRef), func(p *project.Project) error {
						renamed, err = p.RenameBranch(fq, newRef)
						return err
					}); err != nil {
						return nil, err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", fq, renamed)
					return nil, a.emit(cmd, s, p, rec, opts)
				})
		},
	}
	opts.register(cmd)
	return cmd
}

// resolveBranch accepts a branch as loaded or with its file relative to the manifest.
func resolveBranch(p *project.Project, name string) (string, error) {
	if p.Branches.Has(name) {
		return name, nil
	}
	file, ref := tree.SplitQualified(name)
	if file != "" && !filepath.IsAbs(file) {
		fq := tree.QualifiedName(filepath.Join(p.Manifest.Dir(), file), ref)
		if p.Branches.Has(fq) {
			return fq, nil
		}
	}
	return "", fmt.Errorf("branch %s: %w", name, tree.ErrUnknownBranch)
}
