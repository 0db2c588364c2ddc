package main

import (
	"github.com/bryanchriswhite/parallaxd/cmd/parallaxd/commands"
)

func main() {
	commands.Execute()
}
