package main

import "fridamgr/internal/cli"

func main() {
	cli.Execute()
}
