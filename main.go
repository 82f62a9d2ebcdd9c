package main

import "github.com/khanhnv2901/seca-certwatch/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
