package main

import "storegate/cli"

func main() {
	cli.Execute()
}
