package main

import "github.com/example/marketbook/cmd"

func main() {
	cmd.Execute()
}
