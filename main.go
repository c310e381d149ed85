package main

import "github.com/AzielCF/az-relay/cmd"

func main() {
	cmd.Execute()
}
