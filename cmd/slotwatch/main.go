package main

import "slotwatch/internal/cli"

func main() {
	cli.Execute()
}
