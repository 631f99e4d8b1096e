package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bridgebot/bridgebot/internal/version"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "bridgebot",
		Short: "WhatsApp webhook bridge with transcription and durable history",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Run: func(*cobra.Command, []string) {
			runServe()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version.Version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
