// Command framegraphctl is a small CLI for exercising the scheduler without
// standing up the full framegraphd daemon: `run` compiles and executes one
// synthetic frame and prints the layering, `bench` repeats that N times and
// reports timing. Its cobra-based command structure is grounded in
// `88lin-divinesense/cmd/divinesense/main.go`, the only repo in this corpus
// that reaches for a CLI framework instead of a bare flag/env-driven binary.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/framegraph"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/scopealloc"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/taskscheduler"
)

type position struct{}
type velocity struct{}
type transform struct{}

func registerSyntheticPasses(g *framegraph.Graph) {
	g.AddPass("physics", func(b *framegraph.Builder) {
		framegraph.Write[position](b)
		framegraph.Write[velocity](b)
	}, func() {})

	g.AddPass("animation", func(b *framegraph.Builder) {
		framegraph.Read[velocity](b)
		framegraph.Write[transform](b)
	}, func() {})

	g.AddPass("render-prep", func(b *framegraph.Builder) {
		framegraph.Read[position](b)
		framegraph.Read[transform](b)
		b.Signal("GpuReady")
	}, func() {})

	g.AddPass("audio-mix", func(b *framegraph.Builder) {
		b.WaitFor("GpuReady")
	}, func() {})
}

func runOnce(graph *framegraph.Graph, arena *scopealloc.Arena) (framegraph.FrameSnapshot, time.Duration, error) {
	start := time.Now()
	if err := arena.Reset(); err != nil {
		return framegraph.FrameSnapshot{}, 0, err
	}
	graph.Reset()
	registerSyntheticPasses(graph)
	if err := graph.Compile(); err != nil {
		return framegraph.FrameSnapshot{}, 0, err
	}
	if err := graph.Execute(); err != nil {
		return framegraph.FrameSnapshot{}, 0, err
	}
	return graph.Snapshot(), time.Since(start), nil
}

func newRunCmd() *cobra.Command {
	var workers, arenaBytes int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and execute a single synthetic frame, printing the compiled layering",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks := taskscheduler.New()
			tasks.Initialize(workers)
			defer tasks.Shutdown()
			arena := scopealloc.NewArena(arenaBytes)
			graph := framegraph.New(tasks, arena, slog.Default())

			snap, dur, err := runOnce(graph, arena)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "frame duration: %s\n", dur)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "task scheduler worker count (0 = auto)")
	cmd.Flags().IntVar(&arenaBytes, "arena-bytes", 1<<16, "scope allocator capacity in bytes")
	return cmd
}

func newBenchCmd() *cobra.Command {
	var workers, arenaBytes, frames int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run N synthetic frames back to back and report timing",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks := taskscheduler.New()
			tasks.Initialize(workers)
			defer tasks.Shutdown()
			arena := scopealloc.NewArena(arenaBytes)
			graph := framegraph.New(tasks, arena, slog.Default())

			var total time.Duration
			var worst time.Duration
			for i := 0; i < frames; i++ {
				_, dur, err := runOnce(graph, arena)
				if err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				total += dur
				if dur > worst {
					worst = dur
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "frames=%d total=%s avg=%s worst=%s\n",
				frames, total, total/time.Duration(frames), worst)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "task scheduler worker count (0 = auto)")
	cmd.Flags().IntVar(&arenaBytes, "arena-bytes", 1<<16, "scope allocator capacity in bytes")
	cmd.Flags().IntVar(&frames, "frames", 1000, "number of frames to run")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:   "framegraphctl",
		Short: "Exercise the frame scheduler core without the full daemon",
	}
	root.AddCommand(newRunCmd(), newBenchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
