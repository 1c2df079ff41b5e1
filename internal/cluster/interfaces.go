package cluster

import "time"

// Scanner walks the network.
type Scanner interface {
	// Scan returns the hostnames directly connected to hostname.
	Scan(hostname string) ([]string, error)
	// Server returns a snapshot of hostname. A server missing target
	// metadata reports errors.ErrServerIncomplete.
	Server(hostname string) (Server, error)
}

// Oracle answers cost, duration and growth questions about the live world.
// Answers are approximate unless Formulas is available.
type Oracle interface {
	Player() Player
	// ScriptRAM returns the GB one thread of script needs on hostname, or 0
	// if the script is missing there or does not compile.
	ScriptRAM(script, hostname string) float64
	// HackAnalyze returns the fraction of money one hack thread steals.
	HackAnalyze(hostname string) float64
	// GrowthAnalyze returns the grow threads needed to multiply hostname's
	// money by multiplier on a host with cores cores.
	GrowthAnalyze(hostname string, multiplier float64, cores int) float64
	GrowTime(hostname string) time.Duration
	HackTime(hostname string) time.Duration
	WeakenTime(hostname string) time.Duration
	// FileExists reports whether file is present on hostname.
	FileExists(file, hostname string) bool
	// Formulas returns the precise formulas, if the actor owns them.
	Formulas() (Formulas, bool)
}

// Formulas are precise versions of the Oracle estimates that work on
// arbitrary, possibly hypothetical, server snapshots.
type Formulas interface {
	HackChance(s Server, p Player) float64
	HackPercent(s Server, p Player) float64
	GrowTime(s Server, p Player) time.Duration
	HackTime(s Server, p Player) time.Duration
	WeakenTime(s Server, p Player) time.Duration
	// GrowThreads returns the threads needed to grow s to targetMoney.
	GrowThreads(s Server, p Player, targetMoney float64, cores int) int
	// GrowAmount returns s's money after threads grow threads.
	GrowAmount(s Server, p Player, threads int, cores int) float64
}

// Rooter gains access to servers.
type Rooter interface {
	// OpenPort runs the port opener program file against hostname.
	OpenPort(file, hostname string) error
	// Copy copies files from home to hostname.
	Copy(files []string, hostname string) error
}

// Market buys and upgrades purchased servers.
type Market interface {
	PurchasedServers() []string
	PurchasedServerLimit() int
	PurchasedServerMaxRAM() float64
	PurchasedServerCost(ram float64) float64
	PurchasedServerUpgradeCost(hostname string, ram float64) float64
	PurchaseServer(name string, ram float64) (string, error)
	UpgradePurchasedServer(hostname string, ram float64) error
	ServerMaxRAM(hostname string) float64
}

// Spawner starts and stops worker processes.
type Spawner interface {
	// Exec starts job and returns its pid.
	Exec(job Job) (int, error)
	// Kill stops pid. Once Kill returns the process sends no more signals.
	Kill(pid int) bool
}

// Processes looks up running scripts.
type Processes interface {
	RunningScript(pid int) (Process, bool)
}

// Cluster is everything the planner needs from its environment.
type Cluster interface {
	Scanner
	Oracle
	Rooter
	Market
	Spawner
	Processes
}
