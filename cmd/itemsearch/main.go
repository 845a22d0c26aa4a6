package main

import "itemsearch/internal/cli"

func main() {
	cli.Execute()
}
