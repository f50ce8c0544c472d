// Command simplefsd runs the network daemon: it opens (or formats) one
// image file and serves the simulated filesystem's command protocol to
// however many shell clients connect.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/yiny1/simplefs/daemon"
	"github.com/yiny1/simplefs/vfs"
)

func main() {
	app := &cli.App{
		Name:  "simplefsd",
		Usage: "serve a simulated filesystem image over the network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Value: "simplefs.img", Usage: "path to the image file"},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Value: "127.0.0.1:8420", Usage: "address to listen on"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "logrus level"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log)

	engine, err := vfs.Open(c.String("image"), entry)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := daemon.Listen(c.String("listen"), engine, entry)
	if err != nil {
		return err
	}
	entry.WithField("addr", srv.Addr()).Info("listening")
	return srv.Serve()
}
