package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dugsi-go/internal/app"
	"dugsi-go/internal/config"
	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/hub"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the snapshot encryption key",
}

var keyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("KeyInit")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Encryptor().IsConfigured() {
			return fmt.Errorf("encryption keys already exist")
		}

		pass, err := readPassphrase("Passphrase for the private key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.Encryptor().Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Encryption keys generated. Pushed snapshots will be encrypted.")
		return nil
	},
}

// unlockIfConfigured arms the sync engine with the cipher pair when key
// files exist, prompting for the passphrase.
func unlockIfConfigured(a *app.DugsiApp) error {
	if !a.Encryptor().IsConfigured() {
		return nil
	}
	pass, err := readPassphrase("Key passphrase: ")
	if err != nil {
		return err
	}
	return a.UnlockEncryption(pass)
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize with the configured remote",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run live synchronization until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SyncRun")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Sync() == nil {
			return fmt.Errorf("no remote configured")
		}
		if err := unlockIfConfigured(a); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.Sync().OnStatusChange(func(s dugsi.SyncStatus) {
			fmt.Printf("sync: %s\n", s)
		})

		if err := a.Sync().Start(ctx, a.Config().SchoolID); err != nil {
			return fmt.Errorf("starting sync: %w", err)
		}

		fmt.Printf("Synchronizing school %s. Ctrl-C to stop.\n", a.Config().SchoolID)
		<-ctx.Done()
		a.Sync().Stop()
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local snapshot once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SyncPush")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := unlockIfConfigured(a); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := a.PushNow(ctx); err != nil {
			return fmt.Errorf("pushing snapshot: %w", err)
		}

		fmt.Printf("Pushed snapshot (lastUpdated %d)\n", a.Store().LastUpdated())
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local state and sync configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SyncStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("School:       %s\n", a.Config().SchoolID)
		fmt.Printf("Data version: %d\n", a.Store().DataVersion())
		fmt.Printf("Last updated: %d\n", a.Store().LastUpdated())
		fmt.Printf("Students:     %d\n", len(a.Store().Students()))
		if a.Sync() == nil {
			fmt.Println("Remote:       not configured")
		} else {
			fmt.Printf("Remote:       %s\n", a.Config().Remote.Type)
			fmt.Printf("Sync status:  %s\n", a.Sync().Status())
		}
		return nil
	},
}

// hub command
var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run and administer a dugsi hub",
}

var hubServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub server",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if cfg.Hub.Listen == "" || cfg.Hub.DataDir == "" {
			return fmt.Errorf("hub_server.listen and hub_server.data_dir must be configured")
		}

		tokens, err := hub.NewTokenService(cfg.Hub.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}

		srv, err := hub.NewServer(cfg.Hub.Listen, cfg.Hub.DataDir, tokens, nil)
		if err != nil {
			return fmt.Errorf("creating hub server: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Hub listening on %s\n", cfg.Hub.Listen)
		return srv.Start(ctx)
	},
}

var hubTokenCmd = &cobra.Command{
	Use:   "token SCHOOL_ID",
	Short: "Mint an access token for a school",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		tokens, err := hub.NewTokenService(cfg.Hub.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}

		token, err := tokens.Generate(args[0], ttl)
		if err != nil {
			return fmt.Errorf("minting token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keyInitCmd)

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncStatusCmd)

	hubCmd.AddCommand(hubServeCmd)
	hubTokenCmd.Flags().Duration("ttl", 365*24*time.Hour, "Token lifetime")
	hubCmd.AddCommand(hubTokenCmd)

	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(hubCmd)
}
