package main

import "github.com/frahmantamala/secure-payments/cmd"

func main() {
	cmd.Execute()
}
