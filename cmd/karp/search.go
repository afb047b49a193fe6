package main

import (
	"fmt"
	"os"

	"github.com/impl/karp/client"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var searchCount int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search entries by free text",
	Long:  `Search prints a table of up to --count entries matching query.`,
	Example: `  # Find entries mentioning "github"
  karp search github`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchCount, "count", "c", 20, "maximum number of entries to print")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.FindEntries(ctx, args[0])
	if err != nil {
		return err
	}
	if searchCount >= 0 && len(entries) > searchCount {
		entries = entries[:searchCount]
	}

	if len(entries) == 0 {
		fmt.Println("No entries found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Title", "Group", "Username"})
	for _, e := range entries {
		username := ""
		if f, ok := e.Field(client.FormFieldUsername); ok {
			username = f.Value
		}
		table.Append([]string{e.Title, e.Parent, username})
	}
	table.Render()
	return nil
}
