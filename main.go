package main

import "github.com/tommyzliu/stickies/cmd"

func main() {
	cmd.Execute()
}
