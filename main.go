package main

import "github.com/theirongolddev/snapdash/cmd"

func main() {
	cmd.Execute()
}
