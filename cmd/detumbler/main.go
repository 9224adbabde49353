package main

import "bdot-detumbler/internal/cli"

func main() {
	cli.Execute()
}
