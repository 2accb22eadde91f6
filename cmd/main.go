// Command geocomp builds cloud-masked Landsat composites and exports them.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// System gauges are collected by serve itself; drop the default collectors
	// so the two sets do not overlap.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "geocomp: %v\n", err)
		os.Exit(1)
	}
}
