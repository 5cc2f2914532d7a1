package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/td/internal/merge"
	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add <title...>",
	GroupID: GroupTasks,
	Short:   "Add a todo",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args, " "))
		if title == "" {
			return fmt.Errorf("title must not be empty")
		}

		r := record.New(title)
		if desc, _ := cmd.Flags().GetString("description"); desc != "" {
			r.Description = &desc
		}
		r.Priority, _ = cmd.Flags().GetInt("priority")
		if due, _ := cmd.Flags().GetString("due"); due != "" {
			d, err := parseDue(due, time.Now())
			if err != nil {
				return err
			}
			r.DueDate = &d
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := store.EnsureExists(); err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}
		r.ID = len(records) + 1
		records = append(records, r)
		if err := store.Save(records); err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(toJSON([]record.Record{r})[0])
		}
		printf("%s Added %s\n", ui.RenderPassIcon(), ui.RenderRecord(r))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: GroupTasks,
	Short:   "List todos",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		done, _ := cmd.Flags().GetBool("done")
		records = filterRecords(records, all, done)

		if jsonOutput {
			return writeJSON(toJSON(records))
		}
		if len(records) == 0 {
			printf("%s\n", ui.RenderMuted("Nothing to do."))
			return nil
		}
		for _, r := range records {
			fmt.Println(ui.RenderRecord(r))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: GroupTasks,
	Short:   "Show one todo with its description",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args, len(records))
		if err != nil {
			return err
		}

		r := records[ids[0]-1]
		if jsonOutput {
			return writeJSON(toJSON([]record.Record{r})[0])
		}
		fmt.Println(ui.RenderRecordDetail(r))
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id...>",
	GroupID: GroupTasks,
	Short:   "Mark todos as finished",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args, len(records))
		if err != nil {
			return err
		}

		for _, id := range ids {
			records[id-1].Finished = !undo
		}
		if err := store.Save(records); err != nil {
			return err
		}
		for _, id := range ids {
			printf("%s %s\n", ui.RenderPassIcon(), ui.RenderRecord(records[id-1]))
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	GroupID: GroupTasks,
	Short:   "Change the fields of a todo",
	Long: `Change the fields of a todo. Only the flags given are changed; an empty
--description or --due clears that field.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args, len(records))
		if err != nil {
			return err
		}

		r := &records[ids[0]-1]
		changed, err := applyUpdate(cmd, r, time.Now())
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("nothing to update: pass --title, --description, --priority, --due or --finished")
		}
		if err := store.Save(records); err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(toJSON([]record.Record{*r})[0])
		}
		printf("%s Updated %s\n", ui.RenderPassIcon(), ui.RenderRecord(*r))
		return nil
	},
}

// applyUpdate copies the flags that were set onto r.
func applyUpdate(cmd *cobra.Command, r *record.Record, now time.Time) (bool, error) {
	flags := cmd.Flags()
	changed := false
	if flags.Changed("title") {
		title, _ := flags.GetString("title")
		title = strings.TrimSpace(title)
		if title == "" {
			return false, fmt.Errorf("title must not be empty")
		}
		r.Title = title
		changed = true
	}
	if flags.Changed("description") {
		desc, _ := flags.GetString("description")
		r.Description = nil
		if desc != "" {
			r.Description = &desc
		}
		changed = true
	}
	if flags.Changed("priority") {
		r.Priority, _ = flags.GetInt("priority")
		changed = true
	}
	if flags.Changed("due") {
		due, _ := flags.GetString("due")
		r.DueDate = nil
		if strings.TrimSpace(due) != "" {
			d, err := parseDue(due, now)
			if err != nil {
				return false, err
			}
			r.DueDate = &d
		}
		changed = true
	}
	if flags.Changed("finished") {
		r.Finished, _ = flags.GetBool("finished")
		changed = true
	}
	return changed, nil
}

var sortCmd = &cobra.Command{
	Use:     "sort [order]",
	GroupID: GroupTasks,
	Short:   "Reorder todos by one or more criteria",
	Long: `Reorder the store by comma-separated criteria, for example
"due-date,priority". Fields: priority (highest first), due-date (earliest
first, undated last), title, status (open first) and created (newest first).
Append -reverse or -rev to flip a field. Todos are renumbered.

Without an argument, print the available fields.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println(ui.RenderHeader("Sort fields"))
			for _, f := range record.SortFields {
				fmt.Printf("  %s\n", f)
			}
			fmt.Printf("\n%s\n", ui.RenderMuted("Example: td sort status,due-date,priority-reverse"))
			return nil
		}

		order, err := record.ParseSortOrder(args[0])
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}
		record.Sort(records, order)
		if err := store.Save(records); err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(toJSON(records))
		}
		for _, r := range records {
			fmt.Println(ui.RenderRecord(r))
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id...>",
	GroupID: GroupTasks,
	Short:   "Remove todos",
	Long: `Remove todos by number. Numbers are positions in the list, so the
todos after a removed one are renumbered.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		records, err := store.Load()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args, len(records))
		if err != nil {
			return err
		}

		removed, kept := removeRecords(records, ids)
		if err := store.Save(kept); err != nil {
			return err
		}
		for _, r := range removed {
			printf("%s Removed %s\n", ui.RenderFailIcon(), ui.RenderRecord(r))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: GroupSync,
	Short:   "Merge todos from another store file",
	Long: `Merge the records of another store file into this one. Records that
already exist (same content) are skipped; new ones are appended.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		incoming, err := record.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := store.EnsureExists(); err != nil {
			return err
		}
		local, err := store.Load()
		if err != nil {
			return err
		}

		merged, stats := merge.UnionWithStats(local, incoming)
		if stats.Added > 0 {
			if err := store.Save(merged); err != nil {
				return err
			}
		}

		if jsonOutput {
			return writeJSON(stats)
		}
		printf("%s Imported %d new todo(s), %d already present\n",
			ui.RenderPassIcon(), stats.Added, stats.Duplicates)
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "Longer description")
	addCmd.Flags().IntP("priority", "p", 0, "Priority")
	addCmd.Flags().String("due", "", "Due date (YYYY-MM-DD, +3d, \"tomorrow\", \"next friday\")")

	listCmd.Flags().BoolP("all", "a", false, "Include finished todos")
	listCmd.Flags().Bool("done", false, "Only finished todos")
	listCmd.MarkFlagsMutuallyExclusive("all", "done")

	doneCmd.Flags().Bool("undo", false, "Mark as not finished")

	updateCmd.Flags().StringP("title", "t", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().IntP("priority", "p", 0, "New priority")
	updateCmd.Flags().String("due", "", "New due date (same forms as add)")
	updateCmd.Flags().BoolP("finished", "f", false, "Set the finished state")

	rootCmd.AddCommand(addCmd, listCmd, showCmd, updateCmd, doneCmd, rmCmd, sortCmd, importCmd)
}

func filterRecords(records []record.Record, all, done bool) []record.Record {
	if all {
		return records
	}
	var out []record.Record
	for _, r := range records {
		if r.Finished == done {
			out = append(out, r)
		}
	}
	return out
}

// parseIDs parses 1-based record numbers and checks them against n.
// The result is sorted and deduplicated.
func parseIDs(args []string, n int) ([]int, error) {
	seen := make(map[int]bool, len(args))
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("invalid todo number %q", arg)
		}
		if id < 1 || id > n {
			return nil, fmt.Errorf("no todo number %d (have %d)", id, n)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// removeRecords drops the records at ids and renumbers the rest.
func removeRecords(records []record.Record, ids []int) (removed, kept []record.Record) {
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for i, r := range records {
		if drop[i+1] {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	record.Renumber(kept)
	return removed, kept
}

// recordJSON is a record as printed by --json, with its number.
type recordJSON struct {
	ID int `json:"id"`
	record.Record
}

func toJSON(records []record.Record) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, recordJSON{ID: r.ID, Record: r})
	}
	return out
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
