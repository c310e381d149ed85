package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-relay/ui/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the relay MCP server using SSE",
	Long:  `Start an MCP (Model Context Protocol) server over Server-Sent Events so AI agents can run broadcasts and inspect channels.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("host", "", "Host for the SSE MCP server (default MCP_HOST or localhost)")
	mcpCmd.Flags().String("mcp-port", "", "Port for the SSE MCP server (default MCP_PORT or 8080)")
}

func mcpServer(cmd *cobra.Command, _ []string) {
	host := appConfig.MCP.Host
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}
	port := appConfig.MCP.Port
	if v, _ := cmd.Flags().GetString("mcp-port"); v != "" {
		port = v
	}

	mcpServer := server.NewMCPServer(
		"Az-Relay MCP Server",
		appConfig.App.Version,
		server.WithToolCapabilities(true),
	)

	relayHandler := mcp.InitMcpRelay(broadcastUsecase, channelOpsUsecase)
	relayHandler.AddRelayTools(mcpServer)

	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s:%s", host, port)),
		server.WithKeepAlive(true),
	)

	addr := fmt.Sprintf("%s:%s", host, port)
	logrus.Printf("Starting relay MCP SSE server on %s", addr)
	logrus.Printf("SSE endpoint: http://%s/sse", addr)
	logrus.Printf("Message endpoint: http://%s/message", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Reception of termination signal, shutting down gracefully...")
		StopApp()
		os.Exit(0)
	}()

	if err := sseServer.Start(addr); err != nil {
		logrus.Fatalf("Failed to start SSE server: %v", err)
	}
}
