// Command ringstat reports how a key sample spreads over a ring of servers
// and how many keys move when one server leaves.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli"

	"kvring/pkg/ring"
)

func main() {
	app := cli.NewApp()
	app.Name = "ringstat"
	app.Usage = "consistent hash ring distribution report"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "s,servers",
			Usage:  "comma separated host:port list",
			Value:  "127.0.0.1:7001,127.0.0.1:7002,127.0.0.1:7003",
			EnvVar: "KVRING_SERVERS",
		},
		cli.IntFlag{
			Name:  "r,replicas",
			Usage: "replicas per server (R+1 points each)",
			Value: ring.DefaultReplicas,
		},
		cli.IntFlag{
			Name:  "k,keys",
			Usage: "number of sample keys",
			Value: 100000,
		},
		cli.IntFlag{
			Name:  "remove",
			Usage: "index of the server removed for the movement report (-1 = last)",
			Value: -1,
		},
	}
	app.Action = func(c *cli.Context) error {
		servers := splitServers(c.String("servers"))
		return report(os.Stdout, servers, c.Int("replicas"), c.Int("keys"), c.Int("remove"))
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func splitServers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func build(servers []string, replicas int) *ring.HashRing {
	points := make([]ring.Point, len(servers))
	for i, s := range servers {
		points[i] = ring.Point{Identity: s, Index: i}
	}
	return ring.New(points, replicas)
}

func sampleKey(i int) string {
	return fmt.Sprintf("key:%d", i)
}

func report(w io.Writer, servers []string, replicas, keys, remove int) error {
	if len(servers) == 0 {
		return fmt.Errorf("no servers given")
	}
	if keys < 1 {
		return fmt.Errorf("keys must be positive, got %d", keys)
	}
	if remove < 0 {
		remove = len(servers) - 1
	}
	if remove >= len(servers) {
		return fmt.Errorf("remove index %d out of range", remove)
	}

	full := build(servers, replicas)
	counts := make([]int, len(servers))
	owners := make([]int, keys)
	for i := 0; i < keys; i++ {
		idx, err := full.Locate(sampleKey(i))
		if err != nil {
			return err
		}
		owners[i] = idx
		counts[idx]++
	}

	fmt.Fprintf(w, "servers=%d replicas=%d ring_points=%d keys=%d\n", len(servers), full.Replicas(), full.Len(), keys)
	ideal := float64(keys) / float64(len(servers))
	for i, s := range servers {
		fmt.Fprintf(w, "  [%d] %-24s %7d  %6.2f%%  dev=%+.2f%%\n",
			i, s, counts[i], 100*float64(counts[i])/float64(keys), 100*(float64(counts[i])-ideal)/ideal)
	}

	if len(servers) < 2 {
		return nil
	}

	// индексы оставшихся серверов сдвигаются после удалённого
	rest := append(append([]string(nil), servers[:remove]...), servers[remove+1:]...)
	reduced := build(rest, replicas)
	moved := 0
	for i := 0; i < keys; i++ {
		idx, err := reduced.Locate(sampleKey(i))
		if err != nil {
			return err
		}
		if idx >= remove {
			idx++
		}
		if idx != owners[i] {
			moved++
		}
	}
	fmt.Fprintf(w, "remove [%d] %s: moved=%d (%.2f%%, ideal %.2f%%)\n",
		remove, servers[remove], moved, 100*float64(moved)/float64(keys), 100/float64(len(servers)))
	return nil
}
