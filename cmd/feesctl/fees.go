package main

import (
	"fmt"
	"os"
	"path/filepath"

	"student-fee-service/internal/export"
	"student-fee-service/internal/student"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newFeesCmd(s settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Record fees and show payment history",
	}
	cmd.AddCommand(newFeesSetCmd(s), newFeesHistoryCmd(s))
	return cmd
}

func newFeesSetCmd(s settings) *cobra.Command {
	var (
		req    student.FeeRequest
		amount string
		status string
	)

	cmd := &cobra.Command{
		Use:   "set <student-id>",
		Short: "Create a fee record, or change its status with --fee-id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			req.FeeStatus = student.FeeStatus(status)
			if amount != "" {
				d, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q", amount)
				}
				req.Amount = &d
			}

			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			rec, err := s.client().RecordFee(ctx, id, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d: %s (%s)\n", rec.Month, rec.Year, rec.Status, rec.Amount.StringFixed(2))
			if rec.Student != nil {
				fmt.Fprintf(out, "%s is now %s\n", rec.Student.Name, rec.Student.FeeStatus)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FeeID, "fee-id", "", "existing fee record to update")
	cmd.Flags().StringVar(&req.Month, "month", "", "billing month, e.g. March")
	cmd.Flags().IntVar(&req.Year, "year", 0, "billing year")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 5000")
	cmd.Flags().StringVar(&status, "status", "", "paid or unpaid")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newFeesHistoryCmd(s settings) *cobra.Command {
	return &cobra.Command{
		Use:   "history <student-id>",
		Short: "Show all fee records of a student, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			history, err := s.client().FeeHistory(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) - %s\n\n", history.Student.Name, history.Student.Class, history.Student.FeeStatus)
			return printFeeRecords(out, history.FeeRecords)
		},
	}
}

func newExportCmd(s settings) *cobra.Command {
	var (
		f         student.ExportFilter
		feeStatus string
		format    string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the students report as csv or xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != export.FormatCSV && format != export.FormatXLSX {
				return fmt.Errorf("format must be csv or xlsx")
			}
			f.FeeStatus = student.FeeStatus(feeStatus)

			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			data, filename, err := s.client().Export(ctx, format, f)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = filepath.Base(filename)
			}
			if outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", outPath, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", export.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, - for stdout (default: server file name)")
	cmd.Flags().StringVar(&f.Class, "class", "", "exact class name")
	cmd.Flags().StringVar(&feeStatus, "fee-status", "", "paid or unpaid")
	cmd.Flags().StringVar(&f.Month, "month", "", "month whose paid fees are summed")
	cmd.Flags().IntVar(&f.Year, "year", 0, "year whose paid fees are summed")
	return cmd
}

// newSeedCmd creates a sample student with an unpaid January record.
func newSeedCmd(s settings) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a sample student with one unpaid fee record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, s)
			defer cancel()

			c := s.client()
			st, err := c.CreateStudent(ctx, student.CreateStudentRequest{
				Name:        "Test Student",
				Class:       "Class One",
				PhoneNumber: "1234567890",
			})
			if err != nil {
				return err
			}

			amount := decimal.NewFromInt(5000)
			rec, err := c.RecordFee(ctx, st.ID, student.FeeRequest{
				Month:     "January",
				Year:      year,
				Amount:    &amount,
				FeeStatus: student.FeeStatusUnpaid,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created student %s with fee record %s\n", st.ID, rec.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 2024, "year of the sample fee record")
	return cmd
}
