package main

import (
	"github.com/0xPolygon/substrate-client/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
