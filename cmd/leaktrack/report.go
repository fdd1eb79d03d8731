package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/leaktrack-backend/internal/http"
	"github.com/tbourn/leaktrack-backend/internal/report"
)

func setupMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			closeDB(db)
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

// rangeFlags are the --from/--to bounds shared by the reporting commands.
type rangeFlags struct {
	from, to string
}

func (rf *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.from, "from", "", "start (RFC3339 or YYYY-MM-DD in REPORT_TIMEZONE)")
	cmd.Flags().StringVar(&rf.to, "to", "", "end (RFC3339, or YYYY-MM-DD inclusive of that day)")
}

func setupOverviewCommand(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print the admin dashboard summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := report.ParseRange(rf.from, rf.to, a.cfg.Report.Location)
			if err != nil {
				return err
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			ov, err := httpapi.NewOverviewService(db, a.cfg.Report).Overview(cmd.Context(), from, to)
			if err != nil {
				return fmt.Errorf("overview: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ov)
		},
	}
	rf.bind(cmd)
	return cmd
}

func setupExportCommand(a *app) *cobra.Command {
	var (
		rf  rangeFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write inspections as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := report.ParseRange(rf.from, rf.to, a.cfg.Report.Location)
			if err != nil {
				return err
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			bw := bufio.NewWriter(w)
			n, err := httpapi.NewOverviewService(db, a.cfg.Report).Export(cmd.Context(), bw, from, to)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if err := bw.Flush(); err != nil {
				return err
			}
			log.Info().Int("rows", n).Str("out", out).Msg("export written")
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}
