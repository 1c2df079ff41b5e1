package cluster

import "time"

// Server is a snapshot of one server. Values are copied freely; mutating a
// copy never touches the live server.
type Server struct {
	Hostname  string `yaml:"hostname"`
	CPUCores  int    `yaml:"cpu_cores"`
	Purchased bool   `yaml:"purchased"`

	MaxRAM  float64 `yaml:"max_ram"`
	RAMUsed float64 `yaml:"ram_used"`

	HasAdminRights    bool `yaml:"admin"`
	BackdoorInstalled bool `yaml:"backdoor"`

	BaseDifficulty float64 `yaml:"base_difficulty"`
	HackDifficulty float64 `yaml:"hack_difficulty"`
	MinDifficulty  float64 `yaml:"min_difficulty"`
	MoneyAvailable float64 `yaml:"money_available"`
	MoneyMax       float64 `yaml:"money_max"`
	ServerGrowth   float64 `yaml:"server_growth"`

	RequiredHackingSkill int `yaml:"required_hacking_skill"`
	NumOpenPortsRequired int `yaml:"ports_required"`
	OpenPortCount        int `yaml:"open_ports"`

	SSHPortOpen  bool `yaml:"ssh_open"`
	FTPPortOpen  bool `yaml:"ftp_open"`
	SMTPPortOpen bool `yaml:"smtp_open"`
	HTTPPortOpen bool `yaml:"http_open"`
	SQLPortOpen  bool `yaml:"sql_open"`
}

// FreeRAM returns MaxRAM - RAMUsed.
func (s Server) FreeRAM() float64 {
	return s.MaxRAM - s.RAMUsed
}

// Multipliers are the player's hacking multipliers.
type Multipliers struct {
	HackingChance float64 `yaml:"hacking_chance"`
	HackingSpeed  float64 `yaml:"hacking_speed"`
	HackingMoney  float64 `yaml:"hacking_money"`
	HackingGrow   float64 `yaml:"hacking_grow"`
}

// DefaultMultipliers returns a player with no augmentations.
func DefaultMultipliers() Multipliers {
	return Multipliers{HackingChance: 1, HackingSpeed: 1, HackingMoney: 1, HackingGrow: 1}
}

// Player is a snapshot of the actor.
type Player struct {
	Hacking int         `yaml:"hacking"`
	Money   float64     `yaml:"money"`
	Karma   float64     `yaml:"karma"`
	Mults   Multipliers `yaml:"mults"`
}

// Job describes one worker process to launch.
type Job struct {
	Script   string
	Hostname string
	Threads  int
	// Delay is added before the operation starts.
	Delay time.Duration
	// Target is the server the operation acts on. Share jobs leave it empty.
	Target string
	// Notify is the identity to signal on completion, or -1.
	Notify int
}

// Process is a running script.
type Process struct {
	PID      int
	Filename string
	Hostname string
	Threads  int
}

// Scripts names the worker programs.
type Scripts struct {
	Hack   string
	Grow   string
	Weaken string
	Share  string
}

// DefaultScripts returns the stock program names.
func DefaultScripts() Scripts {
	return Scripts{Hack: "hack.js", Grow: "grow.js", Weaken: "weaken.js", Share: "share.js"}
}
