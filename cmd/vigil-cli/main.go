package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vigil-cli",
	Short: "Vigil operator CLI",
	Long: `A command line tool for operating a Vigil monitoring server.
Supports validating check definitions, reading health and cost reports,
and driving chaos test runs.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server-url", "", "Vigil server URL (overrides VIGIL_SERVER_URL)")
	viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server-url"))
}

func initConfig() {
	viper.SetEnvPrefix("VIGIL")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
}

func serverURL() string {
	return viper.GetString("server_url")
}
