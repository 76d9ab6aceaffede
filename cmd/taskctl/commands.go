package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"labelflow/features/workforce"
	"labelflow/internal/csvimport"
	"labelflow/internal/draft"
	"labelflow/internal/fanout"
	"labelflow/internal/template"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Inspect templates and dry-run task fan-out offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "output JSON")

	root.AddCommand(placeholdersCmd(), importCmd(), planCmd())
	return root
}

func placeholdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "placeholders <template.json>",
		Short: "List the placeholders of a template file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := loadTemplate(args[0])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), tmpl.Placeholders)
			}
			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Index", "Name", "Type"})
			for _, p := range tmpl.Placeholders {
				tw.AppendRow(table.Row{p.Index, p.Name, p.Type})
			}
			tw.Render()
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <template.json> <rows.csv>",
		Short: "Show the draft tasks a CSV file produces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, tasks, err := loadDrafts(args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			tw := newTable(cmd.OutOrStdout())
			header := table.Row{"Draft"}
			for _, name := range tmpl.PlaceholderNames() {
				header = append(header, name)
			}
			tw.AppendHeader(header)
			for _, t := range tasks {
				row := table.Row{t.ID}
				for _, v := range t.Values {
					if v == nil {
						row = append(row, "")
						continue
					}
					row = append(row, v.Content)
				}
				tw.AppendRow(row)
			}
			tw.Render()
			return nil
		},
	}
}

func planCmd() *cobra.Command {
	var (
		opts        fanout.Options
		workersFile string
		criteria    workforce.Criteria
	)
	cmd := &cobra.Command{
		Use:   "plan <template.json> <rows.csv>",
		Short: "Dry-run the fan-out of a CSV file into task records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, tasks, err := loadDrafts(args[0], args[1])
			if err != nil {
				return err
			}
			if opts.Name == "" {
				opts.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if workersFile != "" {
				var pool []workforce.Worker
				if err := readJSON(workersFile, &pool); err != nil {
					return err
				}
				opts.Broadcast = true
				opts.Workers = workforce.Filter(pool, criteria.Domains, criteria.Langs, criteria.Locations)
				opts.RepeatCount = fanout.BroadcastRepeatCount(opts.Workers)
			}

			plan, err := fanout.Build(tasks, tmpl, opts)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), plan)
			}

			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Seq", "Draft", "Name", "Workers"})
			for _, r := range plan.Singles {
				tw.AppendRow(table.Row{r.Seq, r.DraftID, r.Name, "-"})
			}
			for _, b := range plan.Broadcasts {
				tw.AppendRow(table.Row{b.Template.Seq, b.Template.DraftID, b.Template.Name, len(b.Workers)})
			}
			tw.AppendFooter(table.Row{"", "", "records", plan.Size()})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.RepeatCount, "repeat", 1, "records per draft task")
	cmd.Flags().StringVar(&opts.Name, "name", "", "task name prefix (defaults to the template file name)")
	cmd.Flags().StringVar(&opts.ProjectRef, "project", "", "project reference")
	cmd.Flags().IntVar(&opts.Timer, "timer", 0, "task timer in seconds")
	cmd.Flags().StringVar(&opts.TaskType, "type", "", "task type")
	cmd.Flags().StringVar(&workersFile, "workers", "", "worker pool JSON file; enables broadcast mode")
	cmd.Flags().StringSliceVar(&criteria.Domains, "domain", nil, "broadcast domain filter")
	cmd.Flags().StringSliceVar(&criteria.Langs, "lang", nil, "broadcast language filter")
	cmd.Flags().StringSliceVar(&criteria.Locations, "location", nil, "broadcast location filter")
	return cmd
}

func loadTemplate(path string) (*template.Template, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, err
	}
	tmpl, err := template.Parse(data)
	if err != nil {
		return nil, err
	}
	tmpl.ID = path
	return tmpl, nil
}

func loadDrafts(templatePath, csvPath string) (*template.Template, []draft.DraftTask, error) {
	tmpl, err := loadTemplate(templatePath)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(csvPath) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := csvimport.ReadRows(f)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := csvimport.Import(rows, tmpl.Placeholders)
	if err != nil {
		return nil, nil, err
	}
	store := draft.NewStore(len(tmpl.Placeholders))
	if err := store.Replace(tasks); err != nil {
		return nil, nil, err
	}
	return tmpl, store.Tasks(), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	return tw
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
