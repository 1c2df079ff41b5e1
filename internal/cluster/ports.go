package cluster

// Port is a port opener program.
type Port struct {
	// Cost is the price of the program.
	Cost float64
	// File is the program's filename on the home host.
	File string
	// IsOpen reports whether the port this program opens is already open.
	IsOpen func(Server) bool
}

// Ports lists the openers in the order servers require them. The first
// entry grants admin rights once enough other ports are open.
var Ports = []Port{
	{Cost: 0, File: "NUKE.exe", IsOpen: func(s Server) bool { return s.HasAdminRights }},
	{Cost: 500_000, File: "BruteSSH.exe", IsOpen: func(s Server) bool { return s.SSHPortOpen }},
	{Cost: 1_500_000, File: "FTPCrack.exe", IsOpen: func(s Server) bool { return s.FTPPortOpen }},
	{Cost: 5_000_000, File: "relaySMTP.exe", IsOpen: func(s Server) bool { return s.SMTPPortOpen }},
	{Cost: 30_000_000, File: "HTTPWorm.exe", IsOpen: func(s Server) bool { return s.HTTPPortOpen }},
	{Cost: 250_000_000, File: "SQLInject.exe", IsOpen: func(s Server) bool { return s.SQLPortOpen }},
}

// FormulasFile unlocks precise Formulas once present on the home host.
const FormulasFile = "Formulas.exe"

// Security changes per thread of each operation.
const (
	SecurityPerGrow   = 0.004
	SecurityPerHack   = 0.002
	SecurityPerWeaken = 0.05

	WeakensPerGrow = SecurityPerGrow / SecurityPerWeaken
	WeakensPerHack = SecurityPerHack / SecurityPerWeaken
)
