// Command arwriter is a thin driver over the arwriter library: it
// assembles object files into a static archive, or synthesizes a
// Windows import library from a list of exported symbols.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "arwriter",
		Short: "Assemble static archives and Windows import libraries",
	}
	root.AddCommand(newPackCommand())
	root.AddCommand(newDlltoolCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
