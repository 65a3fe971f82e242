// Command stadiumctl is a small operator CLI for a running stadiumsim.
//
//	stadiumctl status
//	stadiumctl start <section> [normal|super]
//	stadiumctl force <success|sputter|death>
//	stadiumctl strength <0-100>
//	stadiumctl assign <vendor-id> <section>
//	stadiumctl recall <vendor-id>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/stadium-wave/internal/client"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Configuration from environment.
	apiURL := envOrDefault("STADIUM_API_URL", "http://localhost:8080")
	c := client.New(apiURL, os.Getenv("STADIUM_ADMIN_KEY"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, c, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	var res *client.Result
	var err error

	switch cmd {
	case "status":
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("session %s  tick %s  clock %s  speed %gx\n", st.SessionID, humanize.Comma(int64(st.Tick)), st.Clock, st.Speed)
		fmt.Printf("score %s (waves %s, banked %s)\n", humanize.Comma(int64(st.Score)), humanize.Comma(int64(st.WaveScore)), humanize.Comma(int64(st.Banked)))
		fmt.Printf("wave %s  strength %.0f  multiplier %.1f  waves run %d\n", st.WaveState, st.Strength, st.Multiplier, st.Waves)
		fmt.Printf("fans %d  happiness %.1f  thirst %.1f  vendors %d  served %d  splats %d\n",
			st.Fans, st.AvgHappy, st.AvgThirst, st.Vendors, st.Served, st.Splats)
		return nil
	case "start":
		if len(args) < 1 {
			return fmt.Errorf("usage: start <section> [normal|super]")
		}
		kind := ""
		if len(args) > 1 {
			kind = args[1]
		}
		res, err = c.StartWave(ctx, args[0], kind)
	case "force":
		if len(args) != 1 {
			return fmt.Errorf("usage: force <success|sputter|death>")
		}
		res, err = c.ForceSection(ctx, args[0])
	case "strength":
		if len(args) != 1 {
			return fmt.Errorf("usage: strength <0-100>")
		}
		v, perr := strconv.ParseFloat(args[0], 64)
		if perr != nil {
			return fmt.Errorf("strength: %w", perr)
		}
		res, err = c.OverrideStrength(ctx, v)
	case "assign":
		if len(args) != 2 {
			return fmt.Errorf("usage: assign <vendor-id> <section>")
		}
		id, perr := strconv.ParseUint(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("vendor id: %w", perr)
		}
		res, err = c.Assign(ctx, id, args[1])
	case "recall":
		if len(args) != 1 {
			return fmt.Errorf("usage: recall <vendor-id>")
		}
		id, perr := strconv.ParseUint(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("vendor id: %w", perr)
		}
		res, err = c.Recall(ctx, id)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	fmt.Println(res.Details)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: stadiumctl status|start|force|strength|assign|recall [args]")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
