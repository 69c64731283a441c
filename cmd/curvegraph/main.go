// Command curvegraph loads the Models, Inputs and Curves tables from a remote
// spreadsheet, resolves the reference graph and edits references in place.
//
// Configuration comes from CURVEGRAPH_* environment variables; see
// internal/config. glog flags (-v, -logtostderr, ...) are accepted on every
// command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"curvegraph/internal/config"

	"github.com/golang/glog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer glog.Flush()

	root := newRootCmd(defaultDeps())
	if err := root.ExecuteContext(ctx); err != nil {
		glog.Flush()
		config.Exitf("curvegraph: %v", err)
	}
}
