package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxhq/btstudio/internal/journal"
	"github.com/oxhq/btstudio/internal/project"
	"github.com/oxhq/btstudio/internal/session"
	"github.com/oxhq/btstudio/models"
)

var listers = map[string]func(io.Writer, *project.Project){
	"classes":   listClasses,
	"libraries": listLibraries,
	"nodes":     listNodes,
	"branches":  listBranches,
}

func newLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "ls <manifest> classes|libraries|nodes|branches",
		Short:     "List the classes, libraries, node descriptors or branches of a project",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"classes", "libraries", "nodes", "branches"},
		RunE: func(cmd *cobra.Command, args []string) error {
			list, ok := listers[args[1]]
			if !ok {
				return fmt.Errorf("unknown listing %q (want classes, libraries, nodes or branches)", args[1])
			}
			return a.withProject(cmd.Context(), models.KindCheck, args[0],
				func(_ *session.Context, p *project.Project, _ *journal.Recorder) (any, error) {
					list(cmd.OutOrStdout(), p)
					return nil, nil
				})
		},
	}
}

func listClasses(w io.Writer, p *project.Project) {
	for _, c := range p.Alphabet.SortedClasses() {
		var types []string
		for _, t := range c.Types() {
			types = append(types, t.Name)
		}
		marker := ""
		if c.TopLevel {
			marker = " (top-level)"
		}
		fmt.Fprintf(w, "%s%s: %s\n", c.Name, marker, strings.Join(types, ", "))
	}
}

func listLibraries(w io.Writer, p *project.Project) {
	for _, lib := range p.Catalog.Libraries() {
		fmt.Fprintf(w, "%s\t%d nodes\t%s\n", lib.Name, lib.Len(), lib.Path)
	}
}

func listNodes(w io.Writer, p *project.Project) {
	for _, lib := range p.Catalog.Libraries() {
		for _, d := range lib.Nodes() {
			fmt.Fprintf(w, "%s/%s\t%s %s\t%d attributes\n", lib.Name, d.Name, d.Class, d.Type, len(d.AttrNames()))
		}
	}
}

func listBranches(w io.Writer, p *project.Project) {
	for _, fq := range p.Branches.Names() {
		root, _ := p.Branches.Get(fq)
		fmt.Fprintf(w, "%s\tuid=%s\t%d nodes\n", fq, root, len(p.Store.Descendants(root)))
	}
}
