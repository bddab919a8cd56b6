package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"extflow/internal/app"
	"extflow/internal/backend"
	"extflow/internal/domain"
	"extflow/internal/journal"
	"extflow/internal/workflow"
)

func transitionsCmd() *cobra.Command {
	var status string
	var roles []string
	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Show the transition table or the moves open to a set of roles",
		Example: `  xf transitions
  xf transitions --status en_revision_decano --role decano --role formulador`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(roles) == 0 {
				rows := workflow.Table()
				return printJSONOrTable(rows, func() {
					tw := newTable(table.Row{"Priority", "Role", "Destinations"})
					for i, row := range rows {
						tw.AppendRow(table.Row{i + 1, row.Role, joinStatuses(row.Destinations)})
					}
					tw.Render()
				})
			}
			next := domain.Status(status)
			if !next.Valid() {
				return fmt.Errorf("--status must be a known status, got %q", status)
			}
			actor := actorFromFlags("", roles)
			role, _ := workflow.MainRole(actor)
			out := struct {
				Status       domain.Status   `json:"status"`
				MainRole     domain.Role     `json:"main_role"`
				Destinations []domain.Status `json:"destinations"`
			}{
				Status:       next,
				MainRole:     role,
				Destinations: workflow.AvailableTransitions(domain.Project{Status: next}, actor),
			}
			return printJSONOrTable(out, func() {
				tw := newTable(table.Row{"Status", "Main role", "Destinations"})
				tw.AppendRow(table.Row{next, role, joinStatuses(out.Destinations)})
				tw.Render()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "current project status")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "role held by the actor (repeatable)")
	return cmd
}

type checkReport struct {
	ProjectID    string                       `json:"project_id"`
	Status       domain.Status                `json:"status"`
	MainRole     domain.Role                  `json:"main_role,omitempty"`
	Transitions  []domain.Status              `json:"transitions"`
	CanComment   bool                         `json:"can_comment"`
	CommentNote  string                       `json:"comment_reason,omitempty"`
	Documents    workflow.DocumentPermissions `json:"documents"`
	Missing      []string                     `json:"missing_fields"`
	ProjectOwner string                       `json:"owner,omitempty"`
}

func buildCheckReport(p domain.Project, actor domain.Actor, doc *domain.Document) checkReport {
	role, _ := workflow.MainRole(actor)
	decision := workflow.CanComment(p, actor)
	return checkReport{
		ProjectID:    p.ID,
		Status:       p.Status,
		MainRole:     role,
		Transitions:  workflow.AvailableTransitions(p, actor),
		CanComment:   decision.Allowed,
		CommentNote:  decision.Reason,
		Documents:    workflow.Permissions(p, actor, doc),
		Missing:      workflow.Requirements(p),
		ProjectOwner: p.CreatedBy.ID,
	}
}

func renderCheckReport(r checkReport) {
	tw := newTable(table.Row{"Check", "Result"})
	tw.AppendRow(table.Row{"Project", r.ProjectID})
	tw.AppendRow(table.Row{"Status", r.Status})
	tw.AppendRow(table.Row{"Main role", r.MainRole})
	tw.AppendRow(table.Row{"Transitions", joinStatuses(r.Transitions)})
	comment := "yes"
	if !r.CanComment {
		comment = "no: " + r.CommentNote
	}
	tw.AppendRow(table.Row{"Comment", comment})
	tw.AppendRow(table.Row{"Upload documents", r.Documents.CanUpload})
	tw.AppendRow(table.Row{"Edit documents", r.Documents.CanEdit})
	tw.AppendRow(table.Row{"Delete document", r.Documents.CanDelete})
	missing := "none"
	if len(r.Missing) > 0 {
		missing = strings.Join(r.Missing, ", ")
	}
	tw.AppendRow(table.Row{"Missing fields", missing})
	tw.Render()
}

func checkCmd() *cobra.Command {
	var file, userID, uploadedBy string
	var roles []string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the workflow policies for a project file",
		Example: `  xf check --file project.json --user-id u1 --role formulador
  xf check --file project.json --user-id u2 --role decano --uploaded-by u1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var p domain.Project
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			var doc *domain.Document
			if uploadedBy != "" {
				doc = &domain.Document{UploadedBy: domain.UserRef{ID: uploadedBy}}
			}
			report := buildCheckReport(p, actorFromFlags(userID, roles), doc)
			return printJSONOrTable(report, func() { renderCheckReport(report) })
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "project JSON as returned by the backend")
	cmd.Flags().StringVar(&userID, "user-id", "", "actor user id")
	cmd.Flags().StringArrayVar(&roles, "role", nil, "role held by the actor (repeatable)")
	cmd.Flags().StringVar(&uploadedBy, "uploaded-by", "", "uploader of a document to check delete permission for")
	return cmd
}

func projectCmd() *cobra.Command {
	var token, userID string
	var roles []string
	projCmd := &cobra.Command{Use: "project", Short: "Work with projects on the backend"}
	projCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token forwarded to the backend (env EXTFLOW_TOKEN)")
	projCmd.PersistentFlags().StringVar(&userID, "user-id", "", "actor user id")
	projCmd.PersistentFlags().StringArrayVar(&roles, "role", nil, "role held by the actor (repeatable)")
	_ = viper.BindPFlag("token", projCmd.PersistentFlags().Lookup("token"))

	projCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Fetch a project and show what the actor may do with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := backend.New(cfg.Backend.BaseURL, cfg.BackendTimeout())
			ctx := backend.WithToken(cmd.Context(), viper.GetString("token"))
			p, err := client.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			report := buildCheckReport(p, actorFromFlags(userID, roles), nil)
			return printJSONOrTable(report, func() { renderCheckReport(report) })
		},
	})

	projCmd.AddCommand(&cobra.Command{
		Use:   "move <id> <status>",
		Short: "Request a status change through the workflow engine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := domain.Status(args[1])
			if !next.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := app.NewLogger(viper.GetBool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := backend.WithToken(cmd.Context(), viper.GetString("token"))
			p, err := a.Backend.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			actor := actorFromFlags(userID, roles)
			updated, err := a.Engine.RequestTransition(ctx, p, actor, next)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(updated)
			}
			fmt.Printf("Project %s moved %s -> %s (next view: %s)\n", p.ID, p.Status, updated.Status, workflow.NavigationAfter(next, actor))
			return nil
		},
	})
	return projCmd
}

func journalCmd() *cobra.Command {
	jCmd := &cobra.Command{Use: "journal", Short: "Inspect the transition journal"}
	var limit int
	var projectID, outcome string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent transition attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.JournalEnabled() {
				return fmt.Errorf("journal is disabled in config")
			}
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			entries, err := a.Journal.Latest(cmd.Context(), limit, 0, journal.Filter{ProjectID: projectID, Outcome: outcome})
			if err != nil {
				return err
			}
			return printJSONOrTable(entries, func() {
				tw := newTable(table.Row{"ID", "TS", "Project", "Actor", "Role", "From", "To", "Outcome", "Message"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.ID, e.TS, e.ProjectID, e.ActorID, e.Role, e.FromStatus, e.ToStatus, e.Outcome, e.Message})
				}
				tw.Render()
			})
		},
	}
	tailCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	tailCmd.Flags().StringVar(&projectID, "project", "", "only this project")
	tailCmd.Flags().StringVar(&outcome, "outcome", "", "only this outcome (succeeded, forbidden, failed, incomplete)")
	jCmd.AddCommand(tailCmd)
	return jCmd
}

func actorFromFlags(userID string, roles []string) domain.Actor {
	actor := domain.Actor{UserID: strings.TrimSpace(userID)}
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			actor.Roles = append(actor.Roles, domain.Role(r))
		}
	}
	return actor
}

func joinStatuses(statuses []domain.Status) string {
	if len(statuses) == 0 {
		return "-"
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
