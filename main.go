package main

import "github.com/jmehdipour/odoo-gateway/cmd"

func main() {
	cmd.Execute()
}
