package main

import "github.com/timvw/vibecheck/cmd"

func main() {
	cmd.Execute()
}
