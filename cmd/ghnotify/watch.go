package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/service"
)

// watchKind describes the command group for one watch kind.
type watchKind[T model.Watch[T]] struct {
	use     string
	short   string
	keyName string
	svc     func(a *app) *service.WatchService[T]
}

func newWatchCmd[T model.Watch[T]](a *app, k watchKind[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   k.use,
		Short: k.short,
	}

	var asJSON bool
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List watches in storage order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ready(); err != nil {
				return err
			}
			recs, err := k.svc(a).List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			return printTable(cmd.OutOrStdout(), recs)
		},
	}
	ls.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add " + k.keyName,
			Short: "Start watching",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.ready(); err != nil {
					return err
				}
				rec, err := k.svc(a).Watch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", rec.Key())
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm " + k.keyName,
			Aliases: []string{"remove"},
			Short:   "Stop watching",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.ready(); err != nil {
					return err
				}
				if err := k.svc(a).Unwatch(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stopped watching %s\n", args[0])
				return nil
			},
		},
		ls,
		&cobra.Command{
			Use:   "show " + k.keyName,
			Short: "Print one watch",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.ready(); err != nil {
					return err
				}
				rec, err := k.svc(a).Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printTable(cmd.OutOrStdout(), []T{rec})
			},
		},
		&cobra.Command{
			Use:   "mark " + k.keyName + " [MARKER]",
			Short: "Mark everything read, optionally moving the read marker",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.ready(); err != nil {
					return err
				}
				marker := ""
				if len(args) == 2 {
					marker = args[1]
				}
				rec, err := k.svc(a).MarkRead(cmd.Context(), args[0], marker)
				if err != nil {
					return err
				}
				return printTable(cmd.OutOrStdout(), []T{rec})
			},
		},
		&cobra.Command{
			Use:   "set " + k.keyName + " MARKER UNREAD",
			Short: "Overwrite the read marker and unread count",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.ready(); err != nil {
					return err
				}
				unread, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid unread count %q", args[2])
				}
				var zero T
				rec := zero.WithKey(args[0]).WithProgress(args[1], unread)
				if err := k.svc(a).Put(cmd.Context(), rec); err != nil {
					return err
				}
				return printTable(cmd.OutOrStdout(), []T{rec})
			},
		},
	)
	return cmd
}

func printTable[T model.Watch[T]](w io.Writer, recs []T) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tMARKER\tUNREAD")
	for _, rec := range recs {
		marker := rec.ReadMarker()
		if marker == "" {
			marker = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", rec.Key(), marker, rec.Unread())
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
