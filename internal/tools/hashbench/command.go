package hashbench

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type options struct {
	target time.Duration
	start  int
	ci     bool
}

// NewCommand benchmarks the key derivation on the current hardware and
// recommends an iteration count for KDF_ITERATIONS.
func NewCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "hashbench",
		Short: "Tune the password hashing iteration count for this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ci {
				return runPlain(cmd, opts)
			}
			_, err := tea.NewProgram(newModel(opts)).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&opts.target, "target", 250*time.Millisecond, "target duration for one derivation")
	cmd.Flags().IntVar(&opts.start, "start", 50_000, "iteration count to start probing from")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "non-interactive plain output")
	return cmd
}

type sample struct {
	iterations int
	duration   time.Duration
}

// measure times a single derivation at the given cost. Salt and
// password are fixed; only the iteration count matters for timing.
func measure(iterations int) (sample, error) {
	salt := []byte("hashbench-static-salt-16")
	start := time.Now()
	if _, err := security.DeriveKey([]byte("hashbench-probe-password"), salt, iterations); err != nil {
		return sample{}, err
	}
	return sample{iterations: iterations, duration: time.Since(start)}, nil
}

// probe doubles the iteration count until a derivation overshoots the
// target, then recommends the last count that stayed under it.
func probe(opts *options, report func(sample)) (int, error) {
	iterations := opts.start
	if iterations < security.MinIterations {
		iterations = security.MinIterations
	}
	recommended := iterations
	for {
		s, err := measure(iterations)
		if err != nil {
			return 0, err
		}
		report(s)
		if s.duration >= opts.target || iterations >= security.MaxIterations/2 {
			return recommended, nil
		}
		recommended = iterations
		iterations *= 2
	}
}

func runPlain(cmd *cobra.Command, opts *options) error {
	recommended, err := probe(opts, func(s sample) {
		cmd.Printf("%9d iterations  %s\n", s.iterations, s.duration.Round(time.Millisecond))
	})
	if err != nil {
		return err
	}
	cmd.Printf("\nrecommended KDF_ITERATIONS=%d (target %s)\n", recommended, opts.target)
	return nil
}
