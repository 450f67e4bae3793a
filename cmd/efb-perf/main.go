package main

import "github.com/flybeeper/efb-backend/cmd/efb-perf/cmd"

func main() {
	cmd.Execute()
}
