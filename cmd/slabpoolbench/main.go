// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package main

import (
	"flag"
	"fmt"

	"github.com/fmstephe/slabpool"
	"github.com/fmstephe/slabpool/internal/bench"
)

var (
	nSizesFlag = flag.Int("sizes", 64, "number of distinct synthetic request sizes in the workload")
	roundsFlag = flag.Int("rounds", 1000, "number of acquire/release passes over the workload")
	seedFlag   = flag.Int64("seed", 1, "random seed used to generate the workload's sizes")
)

func main() {
	flag.Parse()

	a := slabpool.New()
	defer a.Destroy()

	sizes := bench.Sizes(*nSizesFlag, *seedFlag)
	result := bench.Run(a, sizes, *roundsFlag)

	fmt.Printf("acquires=%d releases=%d\n", result.Acquires, result.Releases)

	for i, stats := range a.Stats() {
		if stats.Allocs == 0 {
			continue
		}
		fmt.Printf("class %2d: allocs=%d frees=%d reused=%d blocks=%d\n",
			i, stats.Allocs, stats.Frees, stats.Reused, stats.Blocks)
	}
}
