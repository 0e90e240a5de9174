package main

import "github.com/SK124/Swamp/cmd"

func main() {
	cmd.Execute()
}
