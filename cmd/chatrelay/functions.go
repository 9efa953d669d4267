package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// newFunctionsCmd lists the functions the model can call, with their
// argument schemas.
func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List registered callable functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, fn := range reg.Declarations() {
				fmt.Fprintf(out, "%s\n", fn.Name)
				if fn.Description != "" {
					fmt.Fprintf(out, "    %s\n", fn.Description)
				}

				names := make([]string, 0, len(fn.Schema))
				for name := range fn.Schema {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					field := fn.Schema[name]
					required := ""
					if field.Required {
						required = " (required)"
					}
					fmt.Fprintf(out, "    - %s: %s%s", name, field.Type, required)
					if field.Description != "" {
						fmt.Fprintf(out, "  %s", field.Description)
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}
