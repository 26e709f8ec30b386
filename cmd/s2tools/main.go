package main

import "github.com/mundialis/i.sentinel-2/internal/cli"

func main() {
	cli.Execute()
}
