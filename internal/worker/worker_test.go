package worker

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	herrors "github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/protocol"
)

type recordingOperator struct {
	calls []string
	delay time.Duration
	err   error
}

func (o *recordingOperator) Hack(_ context.Context, target string, d time.Duration) error {
	o.calls = append(o.calls, "hack "+target)
	o.delay = d
	return o.err
}

func (o *recordingOperator) Grow(_ context.Context, target string, d time.Duration) error {
	o.calls = append(o.calls, "grow "+target)
	o.delay = d
	return o.err
}

func (o *recordingOperator) Weaken(_ context.Context, target string, d time.Duration) error {
	o.calls = append(o.calls, "weaken "+target)
	o.delay = d
	return o.err
}

func (o *recordingOperator) Share(context.Context) error {
	o.calls = append(o.calls, "share")
	return o.err
}

func TestParseArgs(t *testing.T) {
	a := Args{Delay: 1500 * time.Millisecond, Server: 12, Target: "joesguns"}
	got, err := ParseArgs(Weaken, a.Flags())
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if got != a {
		t.Errorf("ParseArgs(Flags()) = %+v, want %+v", got, a)
	}

	share, err := ParseArgs(Share, []string{"--server=3"})
	if err != nil {
		t.Fatalf("ParseArgs(share) error = %v", err)
	}
	if share.Server != 3 || share.Delay != 0 {
		t.Errorf("ParseArgs(share) = %+v", share)
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		p    Program
		argv []string
	}{
		{"missing delay", Hack, []string{"--target=n00dles"}},
		{"negative delay", Grow, []string{"--delay=-5", "--target=n00dles"}},
		{"empty target", Weaken, []string{"--delay=0"}},
		{"non-numeric server", Hack, []string{"--delay=0", "--target=x", "--server=home"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.p, tt.argv)
			if !herrors.Is(err, herrors.ErrInvalidInput) {
				t.Errorf("ParseArgs() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestProgramFor(t *testing.T) {
	scripts := cluster.DefaultScripts()
	for script, want := range map[string]Program{"hack.js": Hack, "grow.js": Grow, "weaken.js": Weaken, "share.js": Share} {
		got, ok := ProgramFor(script, scripts)
		if !ok || got != want {
			t.Errorf("ProgramFor(%q) = (%v, %v), want %v", script, got, ok, want)
		}
	}
	if _, ok := ProgramFor("karma.js", scripts); ok {
		t.Error("ProgramFor() matched an unknown script")
	}
}

func TestRun_SignalsWhenDone(t *testing.T) {
	reg := mailbox.NewRegistry()
	op := &recordingOperator{}
	env := Env{PID: 42, Operator: op, Registry: reg}

	err := Run(context.Background(), Grow, env, Args{Delay: time.Second, Server: 1, Target: "phantasy"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(op.calls, []string{"grow phantasy"}) || op.delay != time.Second {
		t.Errorf("operator calls = %v with delay %v", op.calls, op.delay)
	}

	box := reg.Handle(1)
	var got []any
	for !box.Empty() {
		v, _ := box.Read()
		got = append(got, v)
	}
	want := []any{protocol.Magic, 42, int(protocol.StealDone)}
	if !slices.Equal(got, want) {
		t.Errorf("mailbox = %v, want %v", got, want)
	}
}

func TestRun_Share(t *testing.T) {
	reg := mailbox.NewRegistry()
	env := Env{PID: 7, Operator: &recordingOperator{}, Registry: reg}

	if err := Run(context.Background(), Share, env, Args{Server: 1}); err != nil {
		t.Fatal(err)
	}
	box := reg.Handle(1)
	box.Read()
	box.Read()
	if code, _ := box.Read(); code != int(protocol.ShareDone) {
		t.Errorf("signal = %v, want SHARE_DONE", code)
	}
}

func TestRun_NoServer(t *testing.T) {
	reg := mailbox.NewRegistry()
	env := Env{PID: 7, Operator: &recordingOperator{}, Registry: reg}

	if err := Run(context.Background(), Hack, env, Args{Server: protocol.NoServer, Target: "n00dles"}); err != nil {
		t.Fatal(err)
	}
	if ids := reg.IDs(); len(ids) != 0 {
		t.Errorf("mailboxes created for %v, want none", ids)
	}
}

func TestRun_OperationFails(t *testing.T) {
	reg := mailbox.NewRegistry()
	boom := errors.New("killed")
	env := Env{PID: 7, Operator: &recordingOperator{err: boom}, Registry: reg}

	err := Run(context.Background(), Weaken, env, Args{Server: 1, Target: "n00dles"})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if !reg.Handle(1).Empty() {
		t.Error("failed worker still signalled")
	}
}

func TestRun_ReleasesBeforeSignal(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantRelease bool
	}{
		{"success", nil, true},
		{"failure", errors.New("killed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mailbox.NewRegistry()
			released := false
			var queuedAtRelease int
			env := Env{
				PID:      7,
				Operator: &recordingOperator{err: tt.err},
				Registry: reg,
				Release: func() {
					released = true
					queuedAtRelease = reg.Handle(1).Len()
				},
			}

			_ = Run(context.Background(), Hack, env, Args{Server: 1, Target: "n00dles"})
			if released != tt.wantRelease {
				t.Fatalf("released = %v, want %v", released, tt.wantRelease)
			}
			if queuedAtRelease != 0 {
				t.Errorf("%d values queued before release, want 0", queuedAtRelease)
			}
		})
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	op := &recordingOperator{}
	env := Env{Operator: op, Registry: mailbox.NewRegistry()}
	err := Run(context.Background(), Hack, env, Args{Delay: -time.Second, Target: "x"})
	if !herrors.Is(err, herrors.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}
	if len(op.calls) != 0 {
		t.Error("operator ran despite invalid args")
	}
}

func TestStop(t *testing.T) {
	reg := mailbox.NewRegistry()
	if err := Stop(reg, 3, 9); err != nil {
		t.Fatal(err)
	}
	l := protocol.NewListener(reg, 3)
	// NewListener clears the mailbox, so write again after it exists.
	if err := Stop(reg, 3, 9); err != nil {
		t.Fatal(err)
	}
	var from int
	if err := l.RegisterHandler(protocol.Stop, func(sender int) { from = sender }); err != nil {
		t.Fatal(err)
	}
	if err := l.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if from != 9 {
		t.Errorf("STOP sender = %d, want 9", from)
	}

	if err := Stop(reg, -1, 9); !herrors.Is(err, herrors.ErrInvalidInput) {
		t.Errorf("Stop(-1) error = %v", err)
	}
}
