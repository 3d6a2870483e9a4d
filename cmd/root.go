package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the safe-gmail-mcp application
var rootCmd = &cobra.Command{
	Use:   "safe-gmail-mcp",
	Short: "A restricted Gmail MCP server",
	Long: `safe-gmail-mcp is an MCP (Model Context Protocol) server that exposes a
restricted, non-destructive set of Gmail operations to AI assistants over
stdio transport. It never exposes send, delete, or settings operations.

Run 'safe-gmail-mcp auth' once to authorize access to your mailbox, then
'safe-gmail-mcp serve' to start the server.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "safe-gmail-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("safe-gmail-mcp version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
