package main

import "stealthcompany.com/adtbridge/internal/cli"

func main() {
	cli.Execute()
}
