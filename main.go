package main

import "github.com/ValentinKolb/kvmap/cmd"

func main() {
	cmd.Execute()
}
