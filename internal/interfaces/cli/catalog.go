package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aduanet/hs-classify/pkg/client"
)

// NewCatalogCmd creates the catalog command with its subcommands.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse and manage the served HS nomenclature",
	}
	cmd.AddCommand(
		newCatalogVersionCmd(),
		newCatalogChaptersCmd(),
		newCatalogGetCmd(),
		newCatalogIngestCmd(),
	)
	return cmd
}

func newCatalogVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the nomenclature release currently served",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			info, err := cliCtx.Client.Catalog().Version(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &versionView{info})
		},
	}
}

func newCatalogChaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapters",
		Short: "List all chapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			chapters, err := cliCtx.Client.Catalog().Chapters(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, entryListView(chapters))
		},
	}
}

func newCatalogGetCmd() *cobra.Command {
	var children bool

	cmd := &cobra.Command{
		Use:   "get <code>",
		Short: "Show one entry with its legal notes and children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			if children {
				list, err := cliCtx.Client.Catalog().Children(ctx, args[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, entryListView(list))
			}

			detail, err := cliCtx.Client.Catalog().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, &entryDetailView{detail})
		},
	}
	cmd.Flags().BoolVar(&children, "children", false, "list only the direct children")
	return cmd
}

func newCatalogIngestCmd() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Trigger a catalog ingest on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			info, err := cliCtx.Client.Catalog().Ingest(ctx, version)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &versionView{info})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release to ingest (default: latest published)")
	return cmd
}

type versionView struct {
	*client.VersionInfo
}

func (v *versionView) String() string {
	return fmt.Sprintf("Version: %s\nEntries: %d", v.Version, v.Entries)
}

func (v *versionView) TableHeaders() []string { return []string{"VERSION", "ENTRIES"} }
func (v *versionView) TableRows() [][]string {
	return [][]string{{v.Version, strconv.Itoa(v.Entries)}}
}

type entryListView []*client.EntrySummary

func (v entryListView) String() string {
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%-10s %s", e.Code, e.Description)
	}
	return sb.String()
}

func (v entryListView) TableHeaders() []string {
	return []string{"CODE", "LEVEL", "LEAF", "DESCRIPTION"}
}

func (v entryListView) TableRows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, e := range v {
		rows = append(rows, []string{e.Code, e.Level, strconv.FormatBool(e.Leaf), e.Description})
	}
	return rows
}

type entryDetailView struct {
	*client.EntryDetail
}

func (v *entryDetailView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code:        %s\n", v.Code)
	fmt.Fprintf(&sb, "Level:       %s\n", v.Level)
	fmt.Fprintf(&sb, "Description: %s", v.Description)
	if v.ParentCode != "" {
		fmt.Fprintf(&sb, "\nParent:      %s", v.ParentCode)
	}
	if len(v.AttributeTags) > 0 {
		fmt.Fprintf(&sb, "\nTags:        %s", strings.Join(v.AttributeTags, ", "))
	}
	if len(v.Notes) > 0 {
		sb.WriteString("\nNotes:")
		for _, n := range v.Notes {
			fmt.Fprintf(&sb, "\n  [%s] %s", n.Code, n.Text)
		}
	}
	if len(v.Children) > 0 {
		sb.WriteString("\nChildren:")
		for _, c := range v.Children {
			fmt.Fprintf(&sb, "\n  %-10s %s", c.Code, c.Description)
		}
	}
	return sb.String()
}

func (v *entryDetailView) TableHeaders() []string {
	return []string{"CODE", "LEVEL", "LEAF", "DESCRIPTION"}
}

func (v *entryDetailView) TableRows() [][]string {
	return [][]string{{v.Code, v.Level, strconv.FormatBool(v.Leaf), v.Description}}
}
