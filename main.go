package main

import (
	"os"

	"tbmirror/app"
)

func main() {
	os.Exit(app.Execute(os.Args[1:]))
}
