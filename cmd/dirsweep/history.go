package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"dirsweep/internal/database"
)

var errNoQuery = errors.New("choose one of --recent, --stats, --action, --path or --largest")

type historyFlags struct {
	dbPath      string
	recent      int
	stats       bool
	days        int
	action      string
	pathPattern string
	largest     int
	prune       int
	jsonOutput  bool
}

func newHistoryCmd() *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the sweep history database",
		Example: `  dirsweep history --recent 10           # 10 most recent sweeps
  dirsweep history --stats --days 7      # statistics for the last week
  dirsweep history --action ERROR        # failed sweeps only
  dirsweep history --path '/srv/%'       # sweeps below /srv
  dirsweep history --largest 5           # 5 sweeps that freed the most bytes
  dirsweep history --prune 90            # drop records older than 90 days`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&f.dbPath, "db", "/var/lib/dirsweep/sweeps.db", "Path to sweep database")
	cmd.Flags().IntVar(&f.recent, "recent", 0, "Show N most recent sweeps")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Show sweep statistics")
	cmd.Flags().IntVar(&f.days, "days", 30, "Number of days for statistics")
	cmd.Flags().StringVar(&f.action, "action", "", "Filter by action (DELETE, SKIP, ERROR, DRY_RUN)")
	cmd.Flags().StringVar(&f.pathPattern, "path", "", "Filter by path pattern (SQL LIKE syntax)")
	cmd.Flags().IntVar(&f.largest, "largest", 0, "Show N sweeps that deleted the most bytes")
	cmd.Flags().IntVar(&f.prune, "prune", 0, "Delete records older than N days and vacuum")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func runHistory(w io.Writer, f *historyFlags) error {
	db, err := database.NewSweepDB(f.dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", f.dbPath, err)
	}
	defer db.Close()

	switch {
	case f.prune > 0:
		return pruneHistory(w, db, f.prune)
	case f.stats:
		return showStats(w, db, f.days, f.jsonOutput)
	case f.recent > 0:
		return showRecords(w, f.jsonOutput, "", func() ([]database.SweepRecord, error) {
			return db.GetRecentSweeps(f.recent)
		})
	case f.action != "":
		action := strings.ToUpper(f.action)
		return showRecords(w, f.jsonOutput, fmt.Sprintf("Sweeps with action: %s", action), func() ([]database.SweepRecord, error) {
			return db.GetSweepsByAction(action)
		})
	case f.pathPattern != "":
		return showRecords(w, f.jsonOutput, fmt.Sprintf("Sweeps matching path pattern: %s", f.pathPattern), func() ([]database.SweepRecord, error) {
			return db.GetSweepsByPath(f.pathPattern)
		})
	case f.largest > 0:
		return showRecords(w, f.jsonOutput, fmt.Sprintf("Largest %d sweeps:", f.largest), func() ([]database.SweepRecord, error) {
			return db.GetLargestSweeps(f.largest)
		})
	default:
		return errNoQuery
	}
}

func showStats(w io.Writer, db *database.SweepDB, days int, jsonOutput bool) error {
	stats, err := db.GetSweepStats(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}
	dbStats, err := db.GetDatabaseStats()
	if err != nil {
		return fmt.Errorf("get database statistics: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, struct {
			Sweeps   *database.SweepStats    `json:"sweeps"`
			Database *database.DatabaseStats `json:"database"`
		}{stats, dbStats})
	}

	fmt.Fprintf(w, "Sweep Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Targets Deleted:     %d\n", stats.TotalDeletes)
	fmt.Fprintf(w, "Targets Skipped:     %d\n", stats.TotalSkipped)
	fmt.Fprintf(w, "Targets Failed:      %d\n", stats.TotalErrors)
	fmt.Fprintf(w, "Directories Deleted: %d\n", stats.DirectoriesDeleted)
	fmt.Fprintf(w, "Files Deleted:       %d\n", stats.FilesDeleted)
	fmt.Fprintf(w, "Bytes Deleted:       %s\n\n", formatBytes(stats.BytesDeleted))

	printCounts(w, "By Error Kind:", stats.ByErrorKind)
	printCounts(w, "By Path:", stats.ByPath)

	fmt.Fprintf(w, "Database: %d records, %s\n", dbStats.TotalRecords, formatBytes(dbStats.DatabaseSizeBytes))
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := lo.Keys(counts)
	sort.Strings(keys)

	fmt.Fprintln(w, title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-30s %d\n", k, counts[k])
	}
	fmt.Fprintln(w)
}

func showRecords(w io.Writer, jsonOutput bool, title string, query func() ([]database.SweepRecord, error)) error {
	records, err := query()
	if err != nil {
		return fmt.Errorf("query sweeps: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, records)
	}

	if title != "" {
		fmt.Fprintf(w, "%s\n\n", title)
	}
	printRecords(w, records)
	return nil
}

func pruneHistory(w io.Writer, db *database.SweepDB, days int) error {
	n, err := db.DeleteOldRecords(days)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	if err := db.Vacuum(); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	fmt.Fprintf(w, "Removed %d records older than %d days\n", n, days)
	return nil
}

func printRecords(w io.Writer, records []database.SweepRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTimestamp\tAction\tDirs\tFiles\tSize\tOptions\tKind\tPath")
	_, _ = fmt.Fprintln(tw, "--\t---------\t------\t----\t-----\t----\t-------\t----\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Action,
			r.Counters.Directories,
			r.Counters.Files,
			formatBytes(r.Counters.Bytes),
			r.Options,
			lo.Ternary(r.ErrorKind == "", "-", r.ErrorKind),
			r.Path,
		)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
