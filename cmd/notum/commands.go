package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maulik225/NotumAi/internal/config"
	"github.com/maulik225/NotumAi/internal/export"
	"github.com/maulik225/NotumAi/internal/storage"
)

// --- projects ---

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List, create or delete annotation projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects")
		if err != nil {
			return err
		}

		var projects []storage.Project
		if err := decodeJSON(resp, &projects); err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, p := range projects {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				colorize(colorCyan, strconv.FormatInt(p.ID, 10)),
				p.Name,
				p.CreatedAt.Local().Format(time.DateTime),
				p.Path,
			)
		}
		return tw.Flush()
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name> <folder>",
	Short: "Create a project for an image folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects", map[string]string{"name": args[0], "path": args[1]})
		if err != nil {
			return err
		}

		var p storage.Project
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Created project %d (%s)", p.ID, p.Name)
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project with its state and annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/projects/%d", id))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted project %d", id)
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}

func parseProjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", s)
	}
	return id, nil
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <project-id> <format>",
	Short: "Export a project as a dataset",
	Long: `Export a project's annotations as a dataset.

Formats: coco, voc, yolo, masks

Examples:
  notum export 3 coco
  notum export 3 yolo --output ~/datasets`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(args[1])
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Exporting project %d as %s...", id, format)
		resp, err := client.post(cmd.Context(), "/export", export.Request{
			ProjectID: id,
			Format:    string(format),
			OutputDir: output,
		})
		if err != nil {
			return err
		}

		var res export.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		printSuccess("Exported %d files to %s", res.Files, res.Path)
		if res.Skipped > 0 {
			printWarning("%d annotations skipped (unknown category or fewer than 3 points)", res.Skipped)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "export under this directory instead of the configured one")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats <project-id>",
	Short: "Show annotation progress and class distribution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/projects/%d/stats", id))
		if err != nil {
			return err
		}

		var stats storage.ProjectStats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d / %d\n", colorize(colorBold, "Annotated:"), stats.AnnotatedCount, stats.TotalImages)

		classes := make([]string, 0, len(stats.ClassDistribution))
		for name := range stats.ClassDistribution {
			classes = append(classes, name)
		}
		sort.Slice(classes, func(i, j int) bool {
			ci, cj := stats.ClassDistribution[classes[i]], stats.ClassDistribution[classes[j]]
			if ci != cj {
				return ci > cj
			}
			return classes[i] < classes[j]
		})
		for _, name := range classes {
			fmt.Fprintf(out, "  %-20s %d\n", name, stats.ClassDistribution[name])
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "print raw JSON")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", config.Path())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- db ---

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the project database",
}

var dbWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every project, state and annotation",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL projects and annotations. Use --confirm to proceed.")
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
			return fmt.Errorf("notum is running (PID %d), stop it first", pid)
		}

		return wipeDatabase(cfg.Storage.DataDir)
	},
}

func wipeDatabase(dataDir string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	printStep("Wiping %s...", dataDir)
	if err := store.Wipe(); err != nil {
		return err
	}
	printSuccess("Database wiped")
	return nil
}

func init() {
	dbWipeCmd.Flags().Bool("confirm", false, "confirm the wipe")
	dbCmd.AddCommand(dbWipeCmd)
}
