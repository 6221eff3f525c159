package main

import (
	"github.com/p4ovs/ovs-p4ctl/internal/cli"
	"github.com/p4ovs/ovs-p4ctl/internal/logging"
	"github.com/p4ovs/ovs-p4ctl/internal/observability"
)

func main() {
	logging.ConfigureRuntime()
	observability.RegisterMetrics()
	cli.Execute()
}
