package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomasters/shelf/file"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Print the header of a shelf table file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	log := newLogger()
	path := args[0]

	mf, err := file.Open(path, file.ReadOnly, 0)
	if err != nil {
		log.Errorf("opening %s: %v", path, err)
		return err
	}
	defer mf.Close()

	fmt.Printf("path:       %s\n", mf.Path())
	fmt.Printf("foreign:    %v\n", mf.Foreign())
	fmt.Printf("size:       %d bytes\n", mf.Size())
	fmt.Printf("capacity:   %d bytes\n", mf.Capacity())
	return nil
}
