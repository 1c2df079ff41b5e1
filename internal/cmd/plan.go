package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/format"
	"github.com/Iron-Ham/heist/internal/host"
	"github.com/Iron-Ham/heist/internal/orchestrator"
	"github.com/Iron-Ham/heist/internal/protocol"
	"github.com/Iron-Ham/heist/internal/target"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan one iteration and print it",
	Long: `Plan a single iteration without launching any workers, then print the
target ranking, the committed work and the capacity left on every host.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
)

func runPlan(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	pid := e.sim.Attach("heist")
	defer e.sim.Detach(pid)

	o, err := e.orchestrator(pid, true, protocol.NoServer)
	if err != nil {
		return err
	}
	report, err := o.Iteration(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printTargets(out, e); err != nil {
		return err
	}
	printPlan(out, report)
	printHosts(out, report.Plan.Hosts())
	return nil
}

// printTargets ranks every rooted server. Rooting already happened during
// the iteration, so a fresh scan sees the admin rights it gained.
func printTargets(w io.Writer, e *env) error {
	servers, err := cluster.Discover(e.sim, e.cfg.Planner.HomeHost)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, s := range target.Rank(e.sim, servers, scripts(e.cfg)) {
		rows = append(rows, []string{
			s.Server.Hostname,
			strconv.FormatFloat(s.Efficiency, 'g', 4, 64),
			format.Money(s.Server.MoneyMax),
			format.RAM(s.RAMPerBatch),
		})
	}
	fmt.Fprintln(w, titleStyle.Render("Targets"))
	fmt.Fprintln(w, newTable("Server", "Efficiency", "Max money", "RAM/batch").Rows(rows...).Render())
	return nil
}

func printPlan(w io.Writer, report *orchestrator.Report) {
	p := report.Plan
	fmt.Fprintln(w, titleStyle.Render("Plan for "+p.Target().Hostname))
	if report.HacksPerBatch > 0 {
		fmt.Fprintf(w, "%d hacks per batch, %d batches\n", report.HacksPerBatch, p.Batches())
	}
	for _, line := range p.Tally().Lines() {
		fmt.Fprintln(w, "  "+line)
	}
	fmt.Fprintf(w, "%d workers, RAM free %s/%s\n", p.Awaits(), format.RAM(report.RAMAfter), format.RAM(report.RAMStart))
}

func printHosts(w io.Writer, hosts []*host.Host) {
	rows := make([][]string, 0, len(hosts))
	for _, h := range hosts {
		rows = append(rows, []string{
			h.Hostname,
			strconv.Itoa(h.Cores),
			format.RAM(h.Server.MaxRAM),
			format.RAM(h.RAMAvailable),
		})
	}
	fmt.Fprintln(w, titleStyle.Render("Hosts"))
	fmt.Fprintln(w, newTable("Host", "Cores", "Max RAM", "Free after plan").Rows(rows...).Render())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
