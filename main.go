package main

import "github.com/inovacc/gitext/cmd"

func main() {
	cmd.Execute()
}
