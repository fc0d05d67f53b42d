package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInterestsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interests",
		Short: "Inspect or reset the stored interest set",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print stored interests, oldest first",
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := e.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				terms, err := st.LoadInterests()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(terms) == 0 {
					fmt.Fprintln(out, "no interests recorded")
					return nil
				}
				for _, t := range terms {
					fmt.Fprintln(out, t)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget every stored interest",
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := e.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				n, err := st.ClearInterests()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d interests\n", n)
				return nil
			},
		},
	)
	return cmd
}
