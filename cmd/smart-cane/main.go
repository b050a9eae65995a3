package main

import "github.com/oshokin/smart-cane/cmd/smart-cane/cmd"

func main() {
	cmd.Execute()
}
