package main

import (
	"github.com/luma/courage/cmd"
)

func main() {
	cmd.Execute()
}
