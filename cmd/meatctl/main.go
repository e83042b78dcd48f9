package main

import "github.com/meatlens/backend/internal/cli"

func main() {
	cli.Execute()
}
