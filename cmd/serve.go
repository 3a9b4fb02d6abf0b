package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/curvesim/daisen"
	"github.com/sarchlab/curvesim/datarecording"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <recording.sqlite3>",
		Short: "Serve the trace and samples of a recording over HTTP.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}

			reader := datarecording.NewReader(args[0])
			defer reader.Close()

			server := daisen.NewServer(reader)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			go func() {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(
					context.Background(), time.Second)
				defer cancel()

				_ = server.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "Listening %s\n", addr)

			return server.ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "http", "localhost:3001",
		"HTTP service address")

	return cmd
}
