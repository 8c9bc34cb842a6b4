package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomasters/shelf/file"
)

var shrinkCmd = &cobra.Command{
	Use:   "shrink <path>",
	Short: "Truncate a shelf table file down to its published size",
	Long: "Truncate a shelf table file down to its published size.\n" +
		"The caller is responsible for ensuring no other process holds the\n" +
		"file open with a larger mapping; shrink does not coordinate that.",
	Args: cobra.ExactArgs(1),
	RunE: runShrink,
}

func runShrink(cmd *cobra.Command, args []string) error {
	log := newLogger()
	path := args[0]

	mf, err := file.Open(path, file.ReadWrite, 0)
	if err != nil {
		log.Errorf("opening %s: %v", path, err)
		return err
	}
	defer mf.Close()

	before := mf.Capacity()
	if err := mf.ShrinkToFit(); err != nil {
		log.Errorf("shrinking %s: %v", path, err)
		return err
	}
	log.Infof("shrank %s: capacity %d -> %d bytes", path, before, mf.Capacity())
	fmt.Printf("capacity: %d -> %d bytes\n", before, mf.Capacity())
	return nil
}
