package main

import "github.com/demolab/state-clustering-service/cmd"

func main() {
	cmd.Execute()
}
