package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "recycle",
	Short: "Waste classification, disposal guidance and recycling quizzes",
	Long: `recycle classifies photos of waste with a local ONNX model, looks up
disposal guidance for the predicted category, runs short quizzes about each
category and submits pickup requests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		mode, _ := cmd.Flags().GetString("color")
		return setColorMode(mode)
	},
}

var configPath string

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(pickupCmd)
	rootCmd.AddCommand(mockBackendCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "recycle.yaml", "path to recycle config file")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|always|never)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
