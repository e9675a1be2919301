package main

import "github.com/serisow/coalmind/cli"

func main() {
	cli.Execute()
}
