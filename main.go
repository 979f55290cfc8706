package main

import (
	"acytel/cmd"
)

func main() {
	cmd.Execute()
}
