package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

func newMigrateCmd(app *App) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if status {
				list, err := app.Migrator.Status(app.Migrations)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(list))
				for _, m := range list {
					state := "pending"
					if m.Applied {
						state = "applied"
					}
					rows = append(rows, []string{fmt.Sprintf("%03d", m.Version), m.Name, state})
				}
				fmt.Fprint(out, renderTable([]string{"VERSION", "NAME", "STATE"}, rows))
				return nil
			}

			if err := app.Migrator.Run(app.Migrations); err != nil {
				return err
			}
			fmt.Fprintln(out, "Migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "List migrations without applying them")
	return cmd
}

func newSeedCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, roles, policies and applications from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			seed, err := ParseSeedFile(f)
			if err != nil {
				return err
			}
			summary, err := app.Seeder.Load(cmd.Context(), seed)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Seeded %d roles, %d users (%d role assignments), %d policies, %d matrix rules, %d applications\n",
				summary.Roles, summary.Users, summary.Assignments, summary.Policies, summary.MatrixRules, summary.Applications)
			for _, id := range summary.ApplicationIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "  application #%d\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file path (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <application-id>",
		Short: "Show an application with its approval flows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseApplicationID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			travelApp, err := app.Travel.Get(ctx, id)
			if err != nil {
				return err
			}
			flows, err := app.Travel.Flows(ctx, id)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"application": travelApp,
					"flows":       flows,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatApplication(travelApp))
			fmt.Fprint(cmd.OutOrStdout(), formatFlows(flows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newResolveCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <application-id>",
		Short: "Preview the approval chain without persisting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseApplicationID(args[0])
			if err != nil {
				return err
			}
			result, err := app.Travel.Preview(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatResolution(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <application-id>",
		Short: "Write the approval chain to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseApplicationID(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("application-%d-chain.xlsx", id)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := app.Export.Export(cmd.Context(), id, f); err != nil {
				f.Close()
				os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default application-<id>-chain.xlsx)")
	return cmd
}

func newSubmitCmd(app *App) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "submit <application-id>",
		Short: "Submit a draft application and persist its approval chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseApplicationID(args[0])
			if err != nil {
				return err
			}
			actorID, err := resolveActor(cmd.Context(), app.Users, actor)
			if err != nil {
				return err
			}

			result, err := app.Travel.Submit(cmd.Context(), id, actorID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application #%d is %s\n", result.Application.ID, result.Application.Status)
			if result.Resolution != nil {
				fmt.Fprint(cmd.OutOrStdout(), formatResolution(result.Resolution))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "as", "", "Acting user id or email (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newActCmd(app *App) *cobra.Command {
	var (
		actor  string
		action string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "act <application-id>",
		Short: "Approve or reject the acting user's pending step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseApplicationID(args[0])
			if err != nil {
				return err
			}
			if action != entity.ActionApprove && action != entity.ActionReject {
				return fmt.Errorf("--action must be %s or %s", entity.ActionApprove, entity.ActionReject)
			}
			actorID, err := resolveActor(cmd.Context(), app.Users, actor)
			if err != nil {
				return err
			}

			result, err := app.Travel.Act(cmd.Context(), id, actorID, action, notes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application #%d is %s\n", result.Application.ID, result.Application.Status)
			if result.Next != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Next approver: %d (%s)\n", result.Next.ApproverID, result.Next.ApprovalLevel)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "as", "", "Acting user id or email (required)")
	cmd.Flags().StringVar(&action, "action", "", "approve or reject (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "Optional notes")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
