package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-skills/internal/history"
)

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recently submitted research jobs",
		Long: `Jobs lists the jobs recorded in the local history database, newest
first, with their remote job id, status, and report path. Use the job
id to follow up on a job that was still running when the CLI exited.`,
		Args: noTopicArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")
			asYAML, _ := cmd.Flags().GetBool("yaml")

			store, err := history.Open(a.v.GetString("history_db"))
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			format := history.FormatTable
			switch {
			case asJSON:
				format = history.FormatJSON
			case asYAML:
				format = history.FormatYAML
			}
			return history.Print(a.stdout, entries, format)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of jobs to list")
	cmd.Flags().Bool("json", false, "output as JSON")
	cmd.Flags().Bool("yaml", false, "output as YAML")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}
