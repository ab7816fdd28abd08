package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pkg "github.com/akina-dev/boorud/pkg/internal"
	"github.com/akina-dev/boorud/pkg/internal/database"
	"github.com/akina-dev/boorud/pkg/internal/services"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

var rootCmd = &cobra.Command{
	Use:           "boorud",
	Short:         "Mirror imageboard posts and files into a local archive",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Booting screen
	fmt.Println(color.CyanString(" _                              _\n| |__   ___   ___  _ __ _   _  __| |\n| '_ \\ / _ \\ / _ \\| '__| | | |/ _` |\n| |_) | (_) | (_) | |  | |_| | (_| |\n|_.__/ \\___/ \\___/|_|   \\__,_|\\__,_|"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiCyan).Add(color.Bold).Sprint(pkg.AppName), pkg.AppVersion)
	fmt.Printf("The imageboard mirroring daemon\n")
	color.HiBlack("=====================================================\n")

	rootCmd.AddCommand(daemonCmd, syncCmd, downloadCmd, cleanupCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("An error occurred when running the command.")
		os.Exit(1)
	}
}

// boot loads settings, opens the database and returns the root store.
func boot() *services.Store {
	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Connect to database
	if err := database.NewGorm(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	services.ReadSourceConfig()

	store, err := services.NewStore(database.C)
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when creating the metadata store.")
	}

	return store
}

// signalContext is cancelled by SIGINT or SIGTERM so every loop can
// shut down cooperatively.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("Shutdown signal received, finishing up...")
		cancel()
	}()

	return ctx
}
