package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"example.com/gym/internal/auth"
	"example.com/gym/internal/domain"
	"example.com/gym/internal/sanitize"
)

func newOverviewCommand(env *environment) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print the monthly presence map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			overview, err := env.attendance.Overview(cmd.Context(), adminID, month)
			if err != nil {
				return err
			}
			return printOverview(cmd.OutOrStdout(), overview)
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", time.Now().Format("2006-01"), "Month in YYYY-MM")
	return cmd
}

func newOrphansCommand(env *environment) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List attendance records whose member no longer exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			overview, err := env.attendance.Overview(cmd.Context(), adminID, month)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RECORD\tDATE")
			for _, o := range overview.Orphaned {
				fmt.Fprintf(w, "%s\t%s\n", o.RecordID, o.Date.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", time.Now().Format("2006-01"), "Month in YYYY-MM")
	return cmd
}

func newSettingsCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change an admin's settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print settings, creating defaults on first access",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			settings, err := env.settings.GetOrCreate(cmd.Context(), adminID)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), settings)
		},
	}

	set := &cobra.Command{
		Use:   "set <json-patch>",
		Short: "Merge a partial JSON document into settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			patch, err := parsePatch(args[0])
			if err != nil {
				return err
			}
			settings, err := env.settings.ApplyUpdate(cmd.Context(), adminID, patch)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), settings)
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newMembersCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Maintain the member roster",
	}

	var name, email, phone string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			member := domain.Member{
				ID:       uuid.NewString(),
				AdminID:  adminID,
				Name:     name,
				Email:    email,
				Phone:    phone,
				JoinedAt: time.Now().UTC(),
			}
			if err := env.store.SaveMember(cmd.Context(), member); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), member.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "Member name")
	add.Flags().StringVar(&email, "email", "", "Member email")
	add.Flags().StringVar(&phone, "phone", "", "Member phone")

	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			members, err := env.store.List(cmd.Context(), adminID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tJOINED")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, m.JoinedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "delete <member-id>",
		Short: "Delete a member, leaving its attendance orphaned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			return env.store.DeleteMember(cmd.Context(), adminID, args[0])
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func newTokenCommand(env *environment) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Issue a signed bearer token for local development",
		Annotations: map[string]string{annotationStore: storeNone},
		RunE: func(cmd *cobra.Command, _ []string) error {
			adminID, err := env.admin()
			if err != nil {
				return err
			}
			if subject == "" {
				subject = adminID
			}
			token, err := auth.Issue(auth.Config{Secret: env.cfg.JWTSecret, Issuer: env.cfg.JWTIssuer}, subject, adminID, scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (defaults to the admin id)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{
		auth.ScopeSettingsRead, auth.ScopeSettingsWrite, auth.ScopeAttendanceRead, auth.ScopeAttendanceWrite,
	}, "Granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

// parsePatch applies the same operator scrubbing the HTTP layer does.
func parsePatch(raw string) (domain.SettingsPatch, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.SettingsPatch{}, fmt.Errorf("parse patch: %w", err)
	}
	clean, err := json.Marshal(sanitize.Map(doc))
	if err != nil {
		return domain.SettingsPatch{}, err
	}
	var patch domain.SettingsPatch
	if err := json.Unmarshal(clean, &patch); err != nil {
		return domain.SettingsPatch{}, fmt.Errorf("parse patch: %w", err)
	}
	return patch, nil
}

func printOverview(out io.Writer, overview *domain.MonthlyOverview) error {
	entries := make([]domain.OverviewEntry, 0, len(overview.Entries))
	for _, entry := range overview.Entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	lastDay := overview.Period.End.Day()
	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprint(w, "MEMBER\tVISITS")
	for day := 1; day <= lastDay; day++ {
		fmt.Fprintf(w, "\t%d", day)
	}
	fmt.Fprintln(w)
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%d", entry.Name, len(entry.Days))
		for day := 1; day <= lastDay; day++ {
			mark := "."
			if entry.Days[day] == 1 {
				mark = "x"
			}
			fmt.Fprintf(w, "\t%s", mark)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if n := len(overview.Orphaned); n > 0 {
		fmt.Fprintf(out, "\n%d orphaned record(s); run `gymctl orphans` for details\n", n)
	}
	return nil
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
