package main

import "github.com/frahmantamala/workpermit/cmd"

func main() {
	cmd.Execute()
}
