package main

import "github.com/hellojin97/copilot-ci-automation/cmd"

func main() {
	cmd.Execute()
}
