// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// gpiodctl inspects and drives GPIO lines through the character device,
// in the spirit of the libgpiod gpiodetect/gpioinfo/gpioget/gpioset/
// gpiomon tools.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/linuxhw/gpiod"
)

var logger zerolog.Logger

func main() {
	app := &cli.App{
		Name:  "gpiodctl",
		Usage: "inspect and drive GPIO lines via the character device",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx *cli.Context) error {
			level := zerolog.InfoLevel
			if ctx.Bool("debug") {
				level = zerolog.DebugLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "detect",
				Usage:  "list all GPIO chips",
				Action: runDetect,
			},
			{
				Name:      "info",
				Usage:     "print line details of a chip",
				ArgsUsage: "<chip>",
				Action:    runInfo,
			},
			{
				Name:      "get",
				Usage:     "read line values",
				ArgsUsage: "<chip> <offset>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "active-low",
						Aliases: []string{"l"},
						Usage:   "treat the lines as active low",
					},
				},
				Action: runGet,
			},
			{
				Name:      "set",
				Usage:     "drive line values and hold them until interrupted",
				ArgsUsage: "<chip> <offset>=<value>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "active-low",
						Aliases: []string{"l"},
						Usage:   "treat the lines as active low",
					},
					&cli.DurationFlag{
						Name:  "hold",
						Usage: "how long to hold the values before releasing",
						Value: time.Second,
					},
				},
				Action: runSet,
			},
			{
				Name:      "mon",
				Usage:     "watch lines for edge events",
				ArgsUsage: "<chip> <offset>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "edges",
						Usage: "edges to report: rising, falling or both",
						Value: "both",
					},
					&cli.IntFlag{
						Name:    "num-events",
						Aliases: []string{"n"},
						Usage:   "exit after this many events, 0 for no limit",
					},
				},
				Action: runMon,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gpiodctl:", err)
		os.Exit(1)
	}
}

func runDetect(ctx *cli.Context) error {
	it, err := gpiod.NewChipIter()
	if err != nil {
		return err
	}
	defer it.Close()
	for c := it.Next(); c != nil; c = it.Next() {
		fmt.Printf("%s [%s] (%d lines)\n", c.Name(), c.Label(), c.Lines())
	}
	return nil
}

func runInfo(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.Exit("info expects exactly one chip", 2)
	}
	c, err := gpiod.OpenChipLookup(ctx.Args().First())
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("%s - %d lines:\n", c.Name(), c.Lines())
	for offset := 0; offset < c.Lines(); offset++ {
		l, err := c.Line(offset)
		if err != nil {
			return err
		}
		name, consumer := l.Name(), l.Consumer()
		if name == "" {
			name = "unnamed"
		}
		if consumer == "" {
			consumer = "unused"
		}
		dir := "input"
		if l.Direction() == gpiod.DirectionOutput {
			dir = "output"
		}
		polarity := "active-high"
		if l.ActiveState() == gpiod.ActiveLow {
			polarity = "active-low"
		}
		fmt.Printf("\tline %3d: %20q %20q %7s %12s\n", offset, name, consumer, dir, polarity)
	}
	return nil
}

// chipAndOffsets resolves the common "<chip> <offset>..." argument shape.
func chipAndOffsets(ctx *cli.Context) (*gpiod.Chip, []int, error) {
	if ctx.NArg() < 2 {
		return nil, nil, cli.Exit("expected a chip and at least one line offset", 2)
	}
	c, err := gpiod.OpenChipLookup(ctx.Args().First())
	if err != nil {
		return nil, nil, err
	}
	offsets := make([]int, 0, ctx.NArg()-1)
	for _, arg := range ctx.Args().Tail() {
		offset, err := strconv.Atoi(arg)
		if err != nil {
			_ = c.Close()
			return nil, nil, fmt.Errorf("bad line offset %q: %w", arg, err)
		}
		offsets = append(offsets, offset)
	}
	return c, offsets, nil
}

func runGet(ctx *cli.Context) error {
	c, offsets, err := chipAndOffsets(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	b, err := c.GetLines(offsets...)
	if err != nil {
		return err
	}
	var flags gpiod.RequestFlag
	if ctx.Bool("active-low") {
		flags |= gpiod.FlagActiveLow
	}
	if err = b.Request(gpiod.RequestConfig{
		Consumer:    "gpiodctl-get",
		RequestType: gpiod.RequestDirectionInput,
		Flags:       flags,
	}); err != nil {
		return err
	}
	defer b.Release()

	values, err := b.Values()
	if err != nil {
		return err
	}
	for i, v := range values {
		fmt.Printf("%d=%d ", offsets[i], v)
	}
	fmt.Println()
	return nil
}

func runSet(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return cli.Exit("expected a chip and at least one <offset>=<value>", 2)
	}
	c, err := gpiod.OpenChipLookup(ctx.Args().First())
	if err != nil {
		return err
	}
	defer c.Close()

	var offsets []int
	var values []int
	for _, arg := range ctx.Args().Tail() {
		var offset, value int
		if _, err := fmt.Sscanf(arg, "%d=%d", &offset, &value); err != nil {
			return fmt.Errorf("bad assignment %q, want <offset>=<value>: %w", arg, err)
		}
		offsets = append(offsets, offset)
		values = append(values, value)
	}

	b, err := c.GetLines(offsets...)
	if err != nil {
		return err
	}
	var flags gpiod.RequestFlag
	if ctx.Bool("active-low") {
		flags |= gpiod.FlagActiveLow
	}
	if err = b.Request(gpiod.RequestConfig{
		Consumer:    "gpiodctl-set",
		RequestType: gpiod.RequestDirectionOutput,
		Flags:       flags,
	}, values...); err != nil {
		return err
	}
	defer b.Release()

	// The kernel may revert the lines once the request fd closes, so
	// hold them for the requested duration.
	hold := ctx.Duration("hold")
	logger.Debug().Dur("hold", hold).Msg("values driven, holding")
	time.Sleep(hold)
	return nil
}

func runMon(ctx *cli.Context) error {
	c, offsets, err := chipAndOffsets(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var rtype gpiod.RequestType
	switch edges := ctx.String("edges"); edges {
	case "rising":
		rtype = gpiod.RequestEventRisingEdge
	case "falling":
		rtype = gpiod.RequestEventFallingEdge
	case "both":
		rtype = gpiod.RequestEventBothEdges
	default:
		return cli.Exit(fmt.Sprintf("unknown edges %q, want rising, falling or both", edges), 2)
	}

	b, err := c.GetLines(offsets...)
	if err != nil {
		return err
	}
	if err = b.Request(gpiod.RequestConfig{
		Consumer:    "gpiodctl-mon",
		RequestType: rtype,
	}); err != nil {
		return err
	}
	defer b.Release()

	limit := ctx.Int("num-events")
	logger.Info().Ints("offsets", offsets).Msg("watching for edges")
	for count := 0; limit == 0 || count < limit; {
		ready, err := b.EventWait(time.Second)
		if err != nil {
			return err
		}
		for _, l := range ready.Lines() {
			ev, err := l.EventRead()
			if err != nil {
				return err
			}
			fmt.Printf("event: %7s offset: %d timestamp: %v\n", ev.Type, l.Offset(), ev.Timestamp)
			count++
		}
	}
	return nil
}
