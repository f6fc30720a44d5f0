package main

import "github.com/dainst/marc-authority-harvester/cmd/marcharvest/commands"

func main() {
	commands.Execute()
}
