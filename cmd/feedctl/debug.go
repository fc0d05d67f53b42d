package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/deepfeed/internal/generator/providers"
	"github.com/ibeckermayer/deepfeed/internal/store"
)

// newReferenceTestCmd looks a topic up with the reference provider's browser,
// headed by default so the page can be inspected.
func newReferenceTestCmd(e *env) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "reference-test <topic>",
		Short: "Fetch a reference article with the same browser options as the reference provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := e.cfg.Reference
			rc.Headless = headless
			ref := providers.NewReferenceProvider(rc, e.log)
			defer ref.Close()

			art, err := ref.Lookup(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n\n", art.Title, art.URL)
			for _, p := range art.Paragraphs {
				fmt.Fprintf(out, "%s\n\n", p)
			}
			if len(art.Related) > 0 {
				fmt.Fprintf(out, "Related: %s\n", strings.Join(art.Related, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	return cmd
}

func newLLMCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Inspect cached model exchanges",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "last",
		Short: "Print the most recent prompt and response",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := store.DefaultCache()
			if err != nil {
				return err
			}
			x, path, err := cache.LatestLLMExchange()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s/%s  %s\n", x.Timestamp.Format(time.DateTime), x.Provider, x.Model, path)
			if x.System != "" {
				fmt.Fprintf(out, "\n--- system ---\n%s\n", x.System)
			}
			fmt.Fprintf(out, "\n--- prompt ---\n%s\n\n--- response ---\n%s\n", x.Prompt, x.Response)
			if x.Error != "" {
				fmt.Fprintf(out, "\n--- error ---\n%s\n", x.Error)
			}
			return nil
		},
	})
	return cmd
}
