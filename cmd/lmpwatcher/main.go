package main

import "curtailment-alerts/internal/cli"

func main() {
	cli.Execute()
}
