package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/Iron-Ham/heist/internal/cmd/config"
	"github.com/Iron-Ham/heist/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "heist",
	Short: "Batch planner for a simulated hacking network",
	Long: `Heist discovers and roots servers, picks the most profitable target,
and packs synchronized hack/grow/weaken batches into every free GB of the
network. Workers report back through per-process mailboxes; the planner
re-plans as soon as a plan completes.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/heist/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().String("world", "", "YAML world file (default is the built-in network)")
	_ = viper.BindPFlag("sim.world", rootCmd.PersistentFlags().Lookup("world"))

	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/heist")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HEIST")
	// e.g. HEIST_PLANNER_PACK_RATIO for planner.pack_ratio
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
