package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/target/powra-portal/internal/domain/model"
)

func printUsers(out io.Writer, users []*model.User) error {
	if len(users) == 0 {
		return writeln(out, "No users found.")
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tEMAIL\tNAME\tROLE\tUPDATED"); err != nil {
		return fmt.Errorf("write users header row: %w", err)
	}
	for _, u := range users {
		name := u.FirstName
		if u.LastName != "" {
			name += " " + u.LastName
		}
		if name == "" {
			name = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Email, name, u.Role, u.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write user row %q: %w", u.ID, err)
		}
	}
	return tw.Flush()
}

func printMigrationStatus(out io.Writer, all, pending []string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "VERSION\tSTATUS"); err != nil {
		return fmt.Errorf("write migration header row: %w", err)
	}
	for _, v := range all {
		status := "applied"
		if slices.Contains(pending, v) {
			status = "pending"
		}
		if err := writef(tw, "%s\t%s\n", v, status); err != nil {
			return fmt.Errorf("write migration row %q: %w", v, err)
		}
	}
	return tw.Flush()
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
