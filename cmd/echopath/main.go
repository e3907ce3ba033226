package main

import (
	"echopath/internal/cli"
)

func main() {
	g := &cli.Globals{}
	root := cli.NewRootCmd(g)
	root.AddCommand(newRunCmd(g))
	cli.Execute(root)
}
