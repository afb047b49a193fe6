package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/errs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	fieldType  string
	fieldIndex int
)

var getFormFieldsCmd = &cobra.Command{
	Use:   "get-form-fields [groups...] <entry>",
	Short: "Print the form fields of one entry",
	Long: `get-form-fields resolves <entry> under the given group path and
prints its form fields. With --index, only that field's raw value is
printed; otherwise a table including an Index column is printed.`,
	Example: `  # All fields of an entry at the database root
  karp get-form-fields github.com

  # Just the password of an entry nested under two groups
  karp get-form-fields -t password -i 0 Work Email github.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGetFormFields,
}

func init() {
	rootCmd.AddCommand(getFormFieldsCmd)
	getFormFieldsCmd.Flags().StringVarP(&fieldType, "type", "t", "", "only consider fields of this type (username, password, text, select, radio, checkbox)")
	getFormFieldsCmd.Flags().IntVarP(&fieldIndex, "index", "i", -1, "print only the raw value of the field at this index")
}

func runGetFormFields(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	groups := args[:len(args)-1]
	title := args[len(args)-1]

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	entry, err := s.GetEntry(ctx, groups, title)
	if err != nil {
		return err
	}

	fields := entry.Fields
	if fieldType != "" {
		filtered := make([]client.FormField, 0, len(fields))
		for _, f := range fields {
			if string(f.Type) == fieldType {
				filtered = append(filtered, f)
			}
		}
		fields = filtered
	}

	if fieldIndex >= 0 {
		if fieldIndex >= len(fields) {
			return fmt.Errorf("%w: field index %d out of range (%d fields)", errs.ErrCommand, fieldIndex, len(fields))
		}
		fmt.Println(fields[fieldIndex].Value)
		return nil
	}

	if len(fields) == 0 {
		fmt.Println("No fields found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Type", "Name", "Value"})
	for i, f := range fields {
		table.Append([]string{strconv.Itoa(i), string(f.Type), f.DisplayName, f.Value})
	}
	table.Render()
	return nil
}
