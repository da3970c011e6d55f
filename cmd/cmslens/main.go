// cmd/cmslens/main.go
package main

import (
	"fmt"
	"os"

	"github.com/cmslens/cmslens/cmd/cmslens/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
