package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"student-fee-service/internal/student"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newStudentsCmd(s settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "students",
		Aliases: []string{"student", "st"},
		Short:   "List, show, add, edit and delete students",
	}
	cmd.AddCommand(
		newStudentsListCmd(s),
		newStudentsGetCmd(s),
		newStudentsAddCmd(s),
		newStudentsEditCmd(s),
		newStudentsDeleteCmd(s),
	)
	return cmd
}

func newStudentsListCmd(s settings) *cobra.Command {
	var f student.ListFilter
	var feeStatus string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students with optional filters and sorting",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			f.FeeStatus = student.FeeStatus(feeStatus)
			students, err := s.client().ListStudents(ctx, f)
			if err != nil {
				return err
			}
			return printStudents(cmd.OutOrStdout(), students, f.HasPeriod())
		},
	}
	cmd.Flags().StringVar(&f.Class, "class", "", "exact class name, e.g. \"Class One\"")
	cmd.Flags().StringVar(&feeStatus, "fee-status", "", "paid or unpaid")
	cmd.Flags().StringVar(&f.Month, "month", "", "billing month, e.g. March")
	cmd.Flags().IntVar(&f.Year, "year", 0, "billing year")
	cmd.Flags().StringVar(&f.SortBy, "sort-by", "", "name, class or feeStatus")
	cmd.Flags().StringVar(&f.SortOrder, "sort-order", "asc", "asc or desc")
	return cmd
}

func newStudentsGetCmd(s settings) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one student with all fee records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			st, err := s.client().GetStudent(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:         %s\n", st.ID)
			fmt.Fprintf(out, "Name:       %s\n", st.Name)
			fmt.Fprintf(out, "Class:      %s\n", st.Class)
			fmt.Fprintf(out, "Phone:      %s\n", st.PhoneNumber)
			fmt.Fprintf(out, "Fee status: %s\n", st.FeeStatus)
			fmt.Fprintf(out, "Admitted:   %s\n\n", st.AdmissionDate.Format("2006-01-02"))
			return printFeeRecords(out, st.FeeRecords)
		},
	}
}

func newStudentsAddCmd(s settings) *cobra.Command {
	var req student.CreateStudentRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a student",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			st, err := s.client().CreateStudent(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %s)\n", st.ID, st.Name, st.Class)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Class, "class", "", "class, e.g. Prep")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "phone number")
	for _, name := range []string{"name", "class", "phone"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newStudentsEditCmd(s settings) *cobra.Command {
	var req student.UpdateStudentRequest

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change name, class or phone of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			st, err := s.client().UpdateStudent(ctx, id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s, %s, %s)\n", st.ID, st.Name, st.Class, st.PhoneNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "new name")
	cmd.Flags().StringVar(&req.Class, "class", "", "new class")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "new phone number")
	return cmd
}

func newStudentsDeleteCmd(s settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student and all of its fee records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			if err := s.client().DeleteStudent(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// printStudents renders the students table. With a period filter the fee
// column shows the status of that month's record.
func printStudents(w io.Writer, students []*student.Student, period bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "ID\tNAME\tCLASS\tPHONE\tFEE STATUS\tADMITTED"
	if period {
		header += "\tPERIOD FEE"
	}
	fmt.Fprintln(tw, header)

	for _, st := range students {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s",
			st.ID, st.Name, st.Class, st.PhoneNumber, st.FeeStatus, st.AdmissionDate.Format("2006-01-02"))
		if period {
			status := "-"
			if len(st.FeeRecords) > 0 {
				status = fmt.Sprintf("%s (%s)", st.FeeRecords[0].Status, st.FeeRecords[0].Amount.StringFixed(2))
			}
			line += "\t" + status
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func printFeeRecords(w io.Writer, records []*student.FeeRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no fee records")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEE ID\tMONTH\tYEAR\tAMOUNT\tSTATUS\tPAID AT")
	for _, r := range records {
		paidAt := "-"
		if r.PaidAt != nil {
			paidAt = r.PaidAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Month, r.Year, r.Amount.StringFixed(2), r.Status, paidAt)
	}
	return tw.Flush()
}
