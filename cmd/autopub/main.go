package main

import "github.com/example/review-autopublisher/cmd"

func main() {
	cmd.Execute()
}
