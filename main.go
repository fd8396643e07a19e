package main

import "cdi-tracker/cmd"

func main() {
	cmd.Execute()
}
