package main

import "github.com/ValentinKolb/netsock/cmd"

func main() {
	cmd.Execute()
}
