package main

import (
	"github.com/flyingcircus/vulnix/cmd"
)

func main() {
	cmd.Execute()
}
