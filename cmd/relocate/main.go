package main

import "github.com/mvp-joe/project-relocate/internal/cli"

func main() {
	cli.Execute()
}
