// Command simplefs-format creates (or wipes) an image file in place,
// without starting the daemon. Useful for provisioning an image ahead of
// time or resetting one a daemon already has open elsewhere.
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
		Name:  "simplefs-format",
		Usage: "create or wipe a simulated filesystem image",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "create the image if missing, or wipe it if present",
				Action:    formatImage,
				ArgsUsage: "IMAGE_FILE",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func formatImage(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: %s format IMAGE_FILE", c.App.Name)
	}
	engine, err := vfs.Open(c.Args().First(), logrus.NewEntry(logrus.New()))
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Format(); err != nil {
		return err
	}
	fmt.Println("formatted", c.Args().First())
	return nil
}
