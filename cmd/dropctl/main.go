// Command dropctl uploads a file to a filedrop server or downloads the
// newest stored file.
//
//	dropctl [--url URL] [--route-base /api] upload <file>
//	dropctl [--url URL] [--route-base /api] download [-o dir]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	flag "github.com/spf13/pflag"

	"filedrop/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("dropctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	baseURL := global.String("url", client.DefaultBaseURL(), "filedrop server URL (env FILEDROP_URL)")
	routeBase := global.String("route-base", "/api", "path prefix of the drop endpoints")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: dropctl [flags] upload <file> | download [-o dir]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	c := client.New(*baseURL, *routeBase)
	switch cmd := global.Arg(0); cmd {
	case "upload":
		return upload(ctx, c, global.Args()[1:], stdout, stderr)
	case "download":
		return download(ctx, c, global.Args()[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		global.Usage()
		return 2
	}
}

func upload(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: dropctl upload <file>")
		return 2
	}

	res, err := c.Upload(ctx, fs.Arg(0))
	if errors.Is(err, client.ErrFileTooLarge) {
		fmt.Fprintln(stdout, res.Message)
		return 1
	}
	if err != nil {
		fmt.Fprintln(stderr, "Upload failed:", err)
		return 1
	}
	fmt.Fprintln(stdout, res.Message)
	if !res.OK() {
		return 1
	}
	return 0
}

func download(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.StringP("output", "o", ".", "directory to save the file in")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	res, err := c.Download(ctx, *dir)
	if err != nil {
		fmt.Fprintln(stderr, "Download failed:", err)
		return 1
	}
	fmt.Fprintln(stdout, res.Message)
	if !res.OK() {
		return 1
	}
	return 0
}
