package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolo-run/wolo/internal/config"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Inspect the resolved configuration and filesystem paths wolo uses.`,
}

var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the fully resolved configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err := config.Load(workDir)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the data/config/cache paths in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.GetPaths()
		rows := []struct{ label, path string }{
			{"config", paths.Config},
			{"data", paths.Data},
			{"cache", paths.Cache},
			{"state", paths.State},
			{"storage", paths.StoragePath()},
			{"auth", paths.AuthPath()},
		}
		for _, row := range rows {
			fmt.Printf("%-8s %s\n", row.label, row.path)
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugPathsCmd)
}
