// Command dbcalm is the single binary that runs every dbcalm role: the
// HTTP front door ("server"), the two command-bus services
// ("dbcmd-server", "syscmd-server"), and the operator CLI for managing
// users, clients and schedules.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "dbcalm",
		Short: "dbcalm — MariaDB/MySQL backup and restore control plane",
		Long: `dbcalm drives mariabackup/xtrabackup full and incremental backups,
chain-aware restores, retention cleanup and cron scheduling behind a
small HTTP API and two privilege-separated command-bus sockets.`,
	}

	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DBCALM_CONFIG"), "path to a YAML config file (optional)")

	root.AddCommand(newServerCmd(&configPath))
	root.AddCommand(newDBCmdServerCmd(&configPath))
	root.AddCommand(newSysCmdServerCmd(&configPath))
	root.AddCommand(newUsersCmd(&configPath))
	root.AddCommand(newClientsCmd(&configPath))
	root.AddCommand(newSchedulesCmd(&configPath))
	root.AddCommand(newBackupCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbcalm %s (commit: %s)\n", version, commit)
		},
	}
}
