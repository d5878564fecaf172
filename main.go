package main

import "github.com/TuringFantasy/simple-dedupe/cmd"

func main() {
	cmd.Execute()
}
