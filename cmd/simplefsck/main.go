// Command simplefsck checks (and optionally repairs) an image file offline,
// without a running daemon.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/yiny1/simplefs/vfs"
)

func main() {
	app := &cli.App{
		Name:  "simplefsck",
		Usage: "check a simulated filesystem image for consistency",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "path to the image file"},
			&cli.BoolFlag{Name: "repair", Aliases: []string{"r"}, Usage: "rewrite bitmaps and superblock to match reality"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.NewEntry(logrus.New())
	engine, err := vfs.Open(c.String("image"), log)
	if err != nil {
		return err
	}
	defer engine.Close()

	report, checkErr := engine.Check(c.Bool("repair"))
	fmt.Printf("visited %d inodes\n", report.InodesVisited)
	fmt.Printf("stale inode bits: %v\n", report.StaleBitsCleared)
	fmt.Printf("missing inode bits: %v\n", report.MissingBitsSet)
	fmt.Printf("stale data bits: %v\n", report.DataStaleCleared)
	fmt.Printf("missing data bits: %v\n", report.DataMissingSet)
	if checkErr != nil {
		fmt.Println(checkErr)
		if !c.Bool("repair") {
			os.Exit(1)
		}
	}
	return nil
}
