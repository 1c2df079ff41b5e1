package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/protocol"
)

// Program is a worker program.
type Program int

const (
	Hack Program = iota
	Grow
	Weaken
	Share
)

// String returns the program name.
func (p Program) String() string {
	switch p {
	case Hack:
		return "hack"
	case Grow:
		return "grow"
	case Weaken:
		return "weaken"
	case Share:
		return "share"
	default:
		return "unknown"
	}
}

// ProgramFor maps a script filename to its program.
func ProgramFor(script string, scripts cluster.Scripts) (Program, bool) {
	switch script {
	case scripts.Hack:
		return Hack, true
	case scripts.Grow:
		return Grow, true
	case scripts.Weaken:
		return Weaken, true
	case scripts.Share:
		return Share, true
	default:
		return 0, false
	}
}

// Args are a worker's parameters.
type Args struct {
	// Delay is added before the operation starts.
	Delay time.Duration
	// Server is the identity to signal once done, or protocol.NoServer.
	Server int
	// Target is the server to act on. Share ignores it.
	Target string
}

// ArgsFor returns the arguments the executor passes for job.
func ArgsFor(job cluster.Job) Args {
	return Args{Delay: job.Delay, Server: job.Notify, Target: job.Target}
}

// Flags formats a as command-line flags. The delay is in milliseconds.
func (a Args) Flags() []string {
	return []string{
		"--delay=" + strconv.FormatInt(a.Delay.Milliseconds(), 10),
		"--server=" + strconv.Itoa(a.Server),
		"--target=" + a.Target,
	}
}

// ParseArgs parses argv for program p and validates the result.
func ParseArgs(p Program, argv []string) (Args, error) {
	fs := pflag.NewFlagSet(p.String(), pflag.ContinueOnError)
	delay := fs.Int64("delay", -1, "milliseconds to wait before the operation")
	server := fs.Int("server", protocol.NoServer, "identity to signal when done")
	target := fs.String("target", "", "server to act on")
	if err := fs.Parse(argv); err != nil {
		return Args{}, errors.NewValidationError(err.Error())
	}

	a := Args{Server: *server, Target: *target}
	if *delay < 0 {
		if p != Share {
			return Args{}, errors.NewValidationError("--delay must be zero or positive").WithField("delay").WithValue(*delay)
		}
		*delay = 0
	}
	a.Delay = time.Duration(*delay) * time.Millisecond
	return a, a.Validate(p)
}

// Validate checks a for program p.
func (a Args) Validate(p Program) error {
	if a.Delay < 0 {
		return errors.NewValidationError("--delay must be zero or positive").WithField("delay").WithValue(a.Delay)
	}
	if p != Share && a.Target == "" {
		return errors.NewValidationError("--target must not be empty").WithField("target")
	}
	return nil
}

// Operator performs the remote operations for one worker process.
type Operator interface {
	Hack(ctx context.Context, target string, additional time.Duration) error
	Grow(ctx context.Context, target string, additional time.Duration) error
	Weaken(ctx context.Context, target string, additional time.Duration) error
	Share(ctx context.Context) error
}

// Env is what a running worker can reach.
type Env struct {
	// PID is the worker's own identity.
	PID      int
	Operator Operator
	Registry *mailbox.Registry
	// Release, if set, frees the worker's capacity. It runs before the
	// completion signal so whoever is notified can reuse that capacity.
	Release func()
}

// Run executes program p and signals a.Server on success. A cancelled
// worker sends nothing.
func Run(ctx context.Context, p Program, env Env, a Args) error {
	if err := a.Validate(p); err != nil {
		return err
	}

	var err error
	done := protocol.StealDone
	switch p {
	case Hack:
		err = env.Operator.Hack(ctx, a.Target, a.Delay)
	case Grow:
		err = env.Operator.Grow(ctx, a.Target, a.Delay)
	case Weaken:
		err = env.Operator.Weaken(ctx, a.Target, a.Delay)
	case Share:
		err = env.Operator.Share(ctx)
		done = protocol.ShareDone
	default:
		return fmt.Errorf("unknown program %d", p)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", p, a.Target, err)
	}

	if env.Release != nil {
		env.Release()
	}
	if a.Server != protocol.NoServer {
		return protocol.WriteSignal(env.Registry, a.Server, env.PID, done)
	}
	return nil
}

// Stop asks the planner listening as pid to quit after its current
// iteration.
func Stop(reg *mailbox.Registry, pid, sender int) error {
	if pid < 0 {
		return errors.NewValidationError("--pid must be a process identity").WithField("pid").WithValue(pid)
	}
	return protocol.WriteSignal(reg, pid, sender, protocol.Stop)
}
