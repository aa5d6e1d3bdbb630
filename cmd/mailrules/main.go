package main

import "github.com/lu-zhengda/mailrules/internal/cli"

func main() {
	cli.Execute()
}
