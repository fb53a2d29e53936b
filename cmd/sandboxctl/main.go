// sandboxctl is an operator utility for the session containers the
// service leaves behind when it dies uncleanly.
//
//	sandboxctl list          show session sandbox containers
//	sandboxctl reap          force-remove all session sandbox containers
//	sandboxctl warm <image>  pre-pull the sandbox image
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/fatih/color"

	"codesession/sandbox"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sandboxctl <list|reap|warm>")
		os.Exit(1)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		color.Red("Failed to create Docker client: %v", err)
		os.Exit(1)
	}
	ctx := context.Background()

	switch os.Args[1] {
	case "list":
		containers, err := sessionContainers(ctx, cli)
		if err != nil {
			color.Red("Failed to list containers: %v", err)
			os.Exit(1)
		}
		if len(containers) == 0 {
			color.Green("No session sandbox containers.")
			return
		}
		for _, c := range containers {
			line := fmt.Sprintf("%.12s  %-20s %s", c.ID, c.Image, c.State)
			if c.State == "running" {
				color.Yellow(line)
			} else {
				color.White(line)
			}
		}

	case "reap":
		containers, err := sessionContainers(ctx, cli)
		if err != nil {
			color.Red("Failed to list containers: %v", err)
			os.Exit(1)
		}
		for _, c := range containers {
			if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
				color.Red("Failed to remove %.12s: %v", c.ID, err)
				continue
			}
			color.Green("Removed %.12s", c.ID)
		}

	case "warm":
		if len(os.Args) < 3 {
			fmt.Println("Usage: sandboxctl warm <image>")
			os.Exit(1)
		}
		reader, err := cli.ImagePull(ctx, os.Args[2], image.PullOptions{})
		if err != nil {
			color.Red("Failed to pull %s: %v", os.Args[2], err)
			os.Exit(1)
		}
		defer reader.Close()
		io.Copy(io.Discard, reader)
		color.Green("Image %s ready.", os.Args[2])

	default:
		fmt.Println("Unknown command.")
		os.Exit(1)
	}
}

func sessionContainers(ctx context.Context, cli *client.Client) ([]types.Container, error) {
	return cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", sandbox.TaskLabel)),
	})
}
