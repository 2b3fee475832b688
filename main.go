package main

import "github.com/pxedeck/pxedeck/cmd/root"

func main() {
	root.Execute()
}
