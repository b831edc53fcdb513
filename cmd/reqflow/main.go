package main

import "github.com/smokejel/reqflow/cli"

func main() {
	cli.Execute()
}
