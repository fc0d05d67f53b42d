package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/deepfeed/internal/app"
	"github.com/ibeckermayer/deepfeed/internal/feed"
)

func newExportCmd(e *env) *cobra.Command {
	var (
		expand  int
		pages   int
		open    bool
		mail    bool
		to      string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load a feed headlessly and write an HTML snapshot to the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(e.cfg, app.Deps{}, e.log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var recipient *string
			if mail || to != "" {
				recipient = &to
			}
			path, err := exportFeed(ctx, a, pages, expand, recipient)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			if open {
				return a.ViewLastExport()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&expand, "expand", 0, "expand the first n posts before exporting")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to reveal")
	cmd.Flags().BoolVar(&open, "open", false, "open the snapshot in the browser")
	cmd.Flags().BoolVar(&mail, "mail", false, "also mail the snapshot to [email] to_address")
	cmd.Flags().StringVar(&to, "to", "", "mail the snapshot to this address instead")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long")
	return cmd
}

// exportFeed drives a session through a Loop: start, reveal pages, expand
// the first posts, then export and flush interests. A non-nil mailTo also
// mails the snapshot.
func exportFeed(ctx context.Context, a *app.App, pages, expand int, mailTo *string) (string, error) {
	s, err := a.NewSession()
	if err != nil {
		return "", err
	}
	l := a.NewLoop(s)
	go l.Run(ctx)

	if err := l.Start(ctx); err != nil {
		return "", err
	}
	l.WaitIdle()
	for i := 1; i < pages; i++ {
		if err := l.Advance(ctx); err != nil {
			return "", err
		}
		l.WaitIdle()
	}

	var ids []feed.NodeID
	err = l.View(ctx, func(s *feed.Session) error {
		for _, n := range s.Visible() {
			if len(ids) == expand {
				break
			}
			ids = append(ids, n.ID())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if err := l.Toggle(ctx, id); err != nil {
			return "", err
		}
	}
	l.WaitIdle()

	var path string
	err = l.View(ctx, func(s *feed.Session) error {
		var err error
		if path, err = a.Export(s); err != nil {
			return err
		}
		if mailTo != nil {
			return a.MailSnapshot(s, *mailTo)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := l.FlushInterests(ctx); err != nil {
		return "", err
	}
	return path, ctx.Err()
}

func newExportsCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List recent snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			exports, err := st.RecentExports(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(exports) == 0 {
				fmt.Fprintln(out, "no exports yet")
				return nil
			}
			for _, x := range exports {
				fmt.Fprintf(out, "%s  roots=%d nodes=%d focus=%d  %s\n",
					x.CreatedAt.Format(time.DateTime), x.Roots, x.Nodes, x.Focus, x.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "how many to show")
	return cmd
}
