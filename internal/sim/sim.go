package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/worker"
)

// DefaultTimeScale runs the world a thousand times faster than real time.
const DefaultTimeScale = 0.001

// Sim is a simulated network.
type Sim struct {
	reg     *mailbox.Registry
	scripts cluster.Scripts
	logger  *logging.Logger
	f       formulas

	mu        sync.Mutex
	home      string
	player    cluster.Player
	servers   map[string]*cluster.Server
	links     map[string][]string
	files     map[string]map[string]bool
	scriptRAM map[string]float64
	market    Market
	shareTime time.Duration
	rng       *rand.Rand
	nextPID   int
	procs     map[int]*process

	wg conc.WaitGroup
}

type process struct {
	cluster.Process
	ram      float64
	released sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Sim.
type Option func(*Sim)

// WithTimeScale multiplies every duration by scale.
func WithTimeScale(scale float64) Option {
	return func(s *Sim) {
		if scale > 0 {
			s.f.scale = scale
		}
	}
}

// WithRegistry shares reg with the simulated processes.
func WithRegistry(reg *mailbox.Registry) Option {
	return func(s *Sim) { s.reg = reg }
}

// WithScripts sets which filenames run which worker program.
func WithScripts(scripts cluster.Scripts) Option {
	return func(s *Sim) { s.scripts = scripts }
}

// WithLogger sets the logger for worker failures.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Sim) {
		if logger != nil {
			s.logger = logger
		}
	}
}

var _ cluster.Cluster = (*Sim)(nil)

// New builds a Sim from w.
func New(w *World, opts ...Option) *Sim {
	s := &Sim{
		scripts:   cluster.DefaultScripts(),
		logger:    logging.NopLogger(),
		f:         formulas{scale: DefaultTimeScale},
		home:      w.Home,
		player:    w.Player,
		servers:   make(map[string]*cluster.Server, len(w.Servers)),
		links:     make(map[string][]string, len(w.Servers)),
		files:     make(map[string]map[string]bool, len(w.Servers)),
		scriptRAM: w.ScriptRAM,
		market:    w.Market,
		rng:       rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15)),
		nextPID:   1,
		procs:     make(map[int]*process),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reg == nil {
		s.reg = mailbox.NewRegistry()
	}
	s.logger = s.logger.WithComponent("sim")
	s.shareTime = time.Duration(float64(w.ShareTime) * s.f.scale * float64(time.Second))

	for _, n := range w.Servers {
		server := n.Server
		s.servers[n.Hostname] = &server
		s.files[n.Hostname] = make(map[string]bool)
	}
	// Links are symmetric.
	for _, n := range w.Servers {
		for _, l := range n.Links {
			s.link(n.Hostname, l)
		}
	}
	for _, f := range w.HomeFiles {
		s.files[w.Home][f] = true
	}
	return s
}

func (s *Sim) link(a, b string) {
	if !slices.Contains(s.links[a], b) {
		s.links[a] = append(s.links[a], b)
	}
	if !slices.Contains(s.links[b], a) {
		s.links[b] = append(s.links[b], a)
	}
}

// Registry returns the mailboxes processes signal through.
func (s *Sim) Registry() *mailbox.Registry { return s.reg }

// Home returns the home hostname.
func (s *Sim) Home() string { return s.home }

// Attach registers an external process, such as the planner, so it gets an
// identity and shows up in RunningScript. It uses no RAM.
func (s *Sim) Attach(filename string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := s.nextPID
	s.nextPID++
	s.procs[pid] = &process{
		Process: cluster.Process{PID: pid, Filename: filename, Hostname: s.home, Threads: 1},
		done:    make(chan struct{}),
	}
	return pid
}

// Detach forgets an attached process.
func (s *Sim) Detach(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[pid]; ok && p.cancel == nil {
		delete(s.procs, pid)
		s.reg.Remove(pid)
	}
}

// Close kills every worker and waits for them to exit.
func (s *Sim) Close() {
	s.mu.Lock()
	var cancels []context.CancelFunc
	for _, p := range s.procs {
		if p.cancel != nil {
			cancels = append(cancels, p.cancel)
		}
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until every worker has exited.
func (s *Sim) Wait() {
	s.wg.Wait()
}

// -----------------------------------------------------------------------------
// Scanner
// -----------------------------------------------------------------------------

func (s *Sim) Scan(hostname string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[hostname]; !ok {
		return nil, errors.NewNotFoundError("server", hostname)
	}
	return slices.Clone(s.links[hostname]), nil
}

func (s *Sim) Server(hostname string) (cluster.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.servers[hostname]
	if !ok {
		return cluster.Server{}, errors.NewNotFoundError("server", hostname)
	}
	return *server, nil
}

// -----------------------------------------------------------------------------
// Oracle
// -----------------------------------------------------------------------------

func (s *Sim) Player() cluster.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

// ScriptRAM returns a program's per-thread cost on hostname. Programs only
// on the home host are costed too, since that is where they are copied from.
func (s *Sim) ScriptRAM(script, hostname string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.files[hostname][script] && !s.files[s.home][script] {
		return 0
	}
	return s.scriptRAM[script]
}

func (s *Sim) HackAnalyze(hostname string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.servers[hostname]
	if !ok {
		return 0
	}
	return s.f.HackPercent(*server, s.player)
}

func (s *Sim) GrowthAnalyze(hostname string, multiplier float64, cores int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.servers[hostname]
	if !ok {
		return 0
	}
	return growthAnalyze(*server, s.player, multiplier, cores)
}

func (s *Sim) GrowTime(hostname string) time.Duration {
	return s.timeOf(hostname, s.f.GrowTime)
}

func (s *Sim) HackTime(hostname string) time.Duration {
	return s.timeOf(hostname, s.f.HackTime)
}

func (s *Sim) WeakenTime(hostname string) time.Duration {
	return s.timeOf(hostname, s.f.WeakenTime)
}

func (s *Sim) timeOf(hostname string, fn func(cluster.Server, cluster.Player) time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.servers[hostname]
	if !ok {
		return 0
	}
	return fn(*server, s.player)
}

func (s *Sim) FileExists(file, hostname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[hostname][file]
}

func (s *Sim) Formulas() (cluster.Formulas, bool) {
	if !s.FileExists(cluster.FormulasFile, s.home) {
		return nil, false
	}
	return s.f, true
}

// -----------------------------------------------------------------------------
// Rooter
// -----------------------------------------------------------------------------

func (s *Sim) OpenPort(file, hostname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.files[s.home][file] {
		return errors.NewNotFoundError("program", file)
	}
	server, ok := s.servers[hostname]
	if !ok {
		return errors.NewNotFoundError("server", hostname)
	}

	idx := slices.IndexFunc(cluster.Ports, func(p cluster.Port) bool { return p.File == file })
	if idx < 0 {
		return fmt.Errorf("%s is not a port opener", file)
	}
	if idx == 0 {
		if server.OpenPortCount < server.NumOpenPortsRequired {
			return fmt.Errorf("%s needs %d open ports, has %d", hostname, server.NumOpenPortsRequired, server.OpenPortCount)
		}
		server.HasAdminRights = true
		return nil
	}

	if cluster.Ports[idx].IsOpen(*server) {
		return nil
	}
	switch idx {
	case 1:
		server.SSHPortOpen = true
	case 2:
		server.FTPPortOpen = true
	case 3:
		server.SMTPPortOpen = true
	case 4:
		server.HTTPPortOpen = true
	case 5:
		server.SQLPortOpen = true
	}
	server.OpenPortCount++
	return nil
}

func (s *Sim) Copy(files []string, hostname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst, ok := s.files[hostname]
	if !ok {
		return errors.NewNotFoundError("server", hostname)
	}
	for _, f := range files {
		if !s.files[s.home][f] {
			return errors.NewNotFoundError("file", f)
		}
		dst[f] = true
	}
	return nil
}

// -----------------------------------------------------------------------------
// Market
// -----------------------------------------------------------------------------

func (s *Sim) PurchasedServers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, server := range s.servers {
		if server.Purchased {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (s *Sim) PurchasedServerLimit() int { return s.market.Limit }
func (s *Sim) PurchasedServerMaxRAM() float64 { return s.market.MaxRAM }
func (s *Sim) PurchasedServerCost(ram float64) float64 {
	return ram * s.market.CostPerGB
}

func (s *Sim) PurchasedServerUpgradeCost(hostname string, ram float64) float64 {
	current := s.ServerMaxRAM(hostname)
	if ram <= current {
		return 0
	}
	return (ram - current) * s.market.CostPerGB
}

func (s *Sim) PurchaseServer(name string, ram float64) (string, error) {
	if !validRAM(ram, s.market.MaxRAM) {
		return "", errors.NewValidationError("RAM must be a power of two").WithField("ram").WithValue(ram)
	}
	cost := s.PurchasedServerCost(ram)

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, server := range s.servers {
		if server.Purchased {
			count++
		}
	}
	if count >= s.market.Limit {
		return "", fmt.Errorf("purchased server limit %d reached", s.market.Limit)
	}
	if cost > s.player.Money {
		return "", fmt.Errorf("need $%.0f, have $%.0f", cost, s.player.Money)
	}

	hostname := name
	for i := 0; s.servers[hostname] != nil; i++ {
		hostname = fmt.Sprintf("%s-%d", name, i)
	}
	s.player.Money -= cost
	s.servers[hostname] = &cluster.Server{
		Hostname:       hostname,
		CPUCores:       1,
		Purchased:      true,
		MaxRAM:         ram,
		HasAdminRights: true,
		HackDifficulty: 1,
		MinDifficulty:  1,
		ServerGrowth:   1,
	}
	s.files[hostname] = make(map[string]bool)
	s.link(s.home, hostname)
	return hostname, nil
}

func (s *Sim) UpgradePurchasedServer(hostname string, ram float64) error {
	if !validRAM(ram, s.market.MaxRAM) {
		return errors.NewValidationError("RAM must be a power of two").WithField("ram").WithValue(ram)
	}
	cost := s.PurchasedServerUpgradeCost(hostname, ram)

	s.mu.Lock()
	defer s.mu.Unlock()
	server, ok := s.servers[hostname]
	if !ok || !server.Purchased {
		return errors.NewNotFoundError("purchased server", hostname)
	}
	if cost > s.player.Money {
		return fmt.Errorf("need $%.0f, have $%.0f", cost, s.player.Money)
	}
	if ram > server.MaxRAM {
		s.player.Money -= cost
		server.MaxRAM = ram
	}
	return nil
}

func (s *Sim) ServerMaxRAM(hostname string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server, ok := s.servers[hostname]; ok {
		return server.MaxRAM
	}
	return 0
}

func validRAM(ram, limit float64) bool {
	if ram < 1 || ram > limit {
		return false
	}
	_, exp := math.Frexp(ram)
	return ram == math.Ldexp(1, exp-1)
}

// -----------------------------------------------------------------------------
// Processes
// -----------------------------------------------------------------------------

func (s *Sim) RunningScript(pid int) (cluster.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	if !ok {
		return cluster.Process{}, false
	}
	return p.Process, true
}

// Processes returns every running process, ordered by pid.
func (s *Sim) Processes() []cluster.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cluster.Process, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p.Process)
	}
	slices.SortFunc(out, func(a, b cluster.Process) int { return a.PID - b.PID })
	return out
}

// Karma returns the player's karma.
func (s *Sim) Karma() float64 {
	return s.Player().Karma
}

// -----------------------------------------------------------------------------
// Spawner
// -----------------------------------------------------------------------------

// Exec starts job as a worker goroutine. The job's RAM is held on its host
// until the worker exits.
func (s *Sim) Exec(job cluster.Job) (int, error) {
	program, ok := worker.ProgramFor(job.Script, s.scripts)
	if !ok {
		return 0, errors.NewNotFoundError("program", job.Script)
	}
	if job.Threads < 1 {
		return 0, errors.NewValidationError("threads must be positive").WithField("threads").WithValue(job.Threads)
	}
	// Round-trip through argv like a real process launch.
	args, err := worker.ParseArgs(program, worker.ArgsFor(job).Flags())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	server, ok := s.servers[job.Hostname]
	if !ok {
		s.mu.Unlock()
		return 0, errors.NewNotFoundError("server", job.Hostname)
	}
	if !s.files[job.Hostname][job.Script] {
		s.mu.Unlock()
		return 0, errors.NewDiscoveryError("script not on host", errors.ErrScriptMissing).
			WithHost(job.Hostname).WithScript(job.Script)
	}
	ram := s.scriptRAM[job.Script] * float64(job.Threads)
	if server.RAMUsed+ram > server.MaxRAM+1e-9 {
		free := server.FreeRAM()
		s.mu.Unlock()
		return 0, fmt.Errorf("%s needs %.2fGB on %s, %.2fGB free", job.Script, ram, job.Hostname, free)
	}
	server.RAMUsed += ram

	ctx, cancel := context.WithCancel(context.Background())
	pid := s.nextPID
	s.nextPID++
	p := &process{
		Process: cluster.Process{PID: pid, Filename: job.Script, Hostname: job.Hostname, Threads: job.Threads},
		ram:     ram,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.procs[pid] = p
	s.mu.Unlock()

	env := worker.Env{
		PID:      pid,
		Operator: &operator{sim: s, hostname: job.Hostname, threads: job.Threads},
		Registry: s.reg,
		Release:  func() { s.release(p) },
	}
	s.wg.Go(func() {
		defer s.exit(p)
		if err := worker.Run(ctx, program, env, args); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("worker failed", "pid", pid, "script", job.Script, "host", job.Hostname, "error", err)
		}
	})
	return pid, nil
}

// release returns p's RAM to its host once.
func (s *Sim) release(p *process) {
	p.released.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if server, ok := s.servers[p.Hostname]; ok {
			server.RAMUsed = math.Max(server.RAMUsed-p.ram, 0)
		}
	})
}

func (s *Sim) exit(p *process) {
	p.cancel()
	s.release(p)
	s.mu.Lock()
	delete(s.procs, p.PID)
	s.mu.Unlock()
	close(p.done)
}

// Kill stops pid and waits for it to exit.
func (s *Sim) Kill(pid int) bool {
	s.mu.Lock()
	p, ok := s.procs[pid]
	s.mu.Unlock()
	if !ok || p.cancel == nil {
		return false
	}
	p.cancel()
	<-p.done
	return true
}
