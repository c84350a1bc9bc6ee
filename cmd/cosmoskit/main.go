package main

import "github.com/nimburion/cosmoskit/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "cosmoskit",
		Description: "Cosmos DB bootstrap and document access",
		ConfigPath:  "",
	}))
}
