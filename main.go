package main

import (
	"github.com/rubiojr/bolt/cmd"
	_ "github.com/rubiojr/bolt/modules/math"
	_ "github.com/rubiojr/bolt/modules/str"
)

var version = "v0.4.0"

func main() {
	cmd.Execute(version)
}
