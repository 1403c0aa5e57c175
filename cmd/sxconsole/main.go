package main

import "github.com/sxlabs/sxconsole/internal/cli"

func main() {
	cli.Execute()
}
