package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aduanet/hs-classify/pkg/client"
)

// NewClassifyCmd creates the classify command.
func NewClassifyCmd() *cobra.Command {
	var (
		material     string
		use          string
		composition  map[string]string
		completeness string
		packaging    bool
		skipCache    bool
		explain      bool
	)

	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Classify a product description into an HS code",
		Long:  "Classify submits a free-text product description, optionally enriched\nwith structured attributes, and prints the winning HS code with its\nconfidence and the interpretation rule trail.",
		Example: `  hsctl classify "frozen chicken cuts, bone in"
  hsctl classify "gift set" --composition perfume=0.6,soap=0.4
  hsctl classify "bicycle, unassembled" --completeness unassembled --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			req := &client.ClassifyRequest{
				Description: strings.Join(args, " "),
				SkipCache:   skipCache,
			}
			attrs, err := buildAttributes(material, use, composition, completeness, packaging)
			if err != nil {
				return err
			}
			req.Attributes = attrs

			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			if explain {
				exp, err := cliCtx.Client.Classify().Explain(ctx, req)
				if err != nil {
					return err
				}
				return PrintResult(cmd, &explanationView{exp})
			}

			res, err := cliCtx.Client.Classify().Classify(ctx, req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &classificationView{res})
		},
	}

	f := cmd.Flags()
	f.StringVar(&material, "material", "", "dominant material of the product")
	f.StringVar(&use, "use", "", "intended use of the product")
	f.StringToStringVar(&composition, "composition", nil, "component fractions summing to at most 1.0, e.g. --composition cotton=0.6,polyester=0.4")
	f.StringVar(&completeness, "completeness", "", "completeness: incomplete | unassembled")
	f.BoolVar(&packaging, "packaging-sold-separately", false, "packaging is normally sold separately")
	f.BoolVar(&skipCache, "skip-cache", false, "bypass the server-side result cache")
	f.BoolVar(&explain, "explain", false, "print only the rule trail")
	return cmd
}

func buildAttributes(material, use string, composition map[string]string, completeness string, packaging bool) (*client.Attributes, error) {
	if material == "" && use == "" && len(composition) == 0 && completeness == "" && !packaging {
		return nil, nil
	}
	attrs := &client.Attributes{
		Material:                material,
		Use:                     use,
		Completeness:            completeness,
		PackagingSoldSeparately: packaging,
	}
	if len(composition) > 0 {
		attrs.Composition = make(map[string]float64, len(composition))
		for component, raw := range composition {
			frac, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid composition fraction for %q: %s", component, raw)
			}
			attrs.Composition[component] = frac
		}
	}
	return attrs, nil
}

// classificationView renders a Classification for text and table output.
type classificationView struct {
	*client.Classification
}

func (v *classificationView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code:        %s\n", v.Code)
	fmt.Fprintf(&sb, "Description: %s\n", v.Description)
	fmt.Fprintf(&sb, "Confidence:  %.2f\n", v.Confidence)
	fmt.Fprintf(&sb, "Methods:     %s\n", strings.Join(v.Methods, ", "))
	fmt.Fprintf(&sb, "Catalog:     %s", v.CatalogVersion)
	if v.Cached {
		sb.WriteString(" (cached)")
	}
	if v.Degraded {
		fmt.Fprintf(&sb, "\nDegraded:    %s", strings.Join(v.DegradedReasons, "; "))
	}
	if len(v.RuleTrail) > 0 {
		sb.WriteString("\nRules:")
		for _, step := range v.RuleTrail {
			fmt.Fprintf(&sb, "\n  %s at %s -> %s", step.Rule, step.Level, step.Code)
		}
	}
	if len(v.Alternatives) > 0 {
		sb.WriteString("\nAlternatives:")
		for _, alt := range v.Alternatives {
			fmt.Fprintf(&sb, "\n  %s  %.2f  %s", alt.Code, alt.Confidence, alt.Description)
		}
	}
	return sb.String()
}

func (v *classificationView) TableHeaders() []string {
	return []string{"CODE", "CONFIDENCE", "DESCRIPTION"}
}

func (v *classificationView) TableRows() [][]string {
	rows := [][]string{{v.Code, fmt.Sprintf("%.2f", v.Confidence), v.Description}}
	for _, alt := range v.Alternatives {
		rows = append(rows, []string{alt.Code, fmt.Sprintf("%.2f", alt.Confidence), alt.Description})
	}
	return rows
}

// explanationView renders an Explanation for text and table output.
type explanationView struct {
	*client.Explanation
}

func (v *explanationView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code:    %s\n", v.Code)
	fmt.Fprintf(&sb, "Catalog: %s", v.CatalogVersion)
	for _, step := range v.RuleTrail {
		fmt.Fprintf(&sb, "\n%s at %s -> %s", step.Rule, step.Level, step.Code)
		if step.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", step.Detail)
		}
	}
	return sb.String()
}

func (v *explanationView) TableHeaders() []string {
	return []string{"RULE", "LEVEL", "CODE", "DETAIL"}
}

func (v *explanationView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.RuleTrail))
	for _, step := range v.RuleTrail {
		rows = append(rows, []string{step.Rule, step.Level, step.Code, step.Detail})
	}
	return rows
}
