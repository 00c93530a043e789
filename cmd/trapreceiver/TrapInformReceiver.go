// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coresnmp/snmpmgr"
	"github.com/spf13/cobra"
)

var (
	flagBindAddr   string
	flagBindPort   int
	flagCommunity  []string
	flagConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "trapreceiver",
	Short: "Receive and print SNMP traps and informs",
	Long: `trapreceiver listens for V2Trap and Inform notifications in SNMP
v1/v2c and v3 messages (RFC 1157 v1 Trap-PDUs are not parsed),
acknowledging informs automatically, and prints each decoded notification.

v3 users are supplied via --config, a CUE target file (see LoadTargetsFromCUE):
each target's userName/authProtocol/privProtocol/passwords become the
credentials trapreceiver uses to authenticate and decrypt that user's traps.`,
	RunE: runReceiver,
}

func init() {
	rootCmd.Flags().StringVar(&flagBindAddr, "bind", "0.0.0.0", "address to listen on")
	rootCmd.Flags().IntVar(&flagBindPort, "port", 162, "UDP port to listen on")
	rootCmd.Flags().StringSliceVar(&flagCommunity, "community", nil, "accepted v1/v2c communities (default: accept any)")
	rootCmd.Flags().StringVar(&flagConfigPath, "config", "", "CUE target file supplying v3 user credentials")
}

func runReceiver(cmd *cobra.Command, args []string) error {
	listener, err := snmpmgr.ListenTrap(flagBindAddr, flagBindPort)
	if err != nil {
		return fmt.Errorf("listen %s:%d: %w", flagBindAddr, flagBindPort, err)
	}
	defer listener.Close()

	if len(flagCommunity) > 0 {
		listener.V2Communities = make(map[string]bool, len(flagCommunity))
		for _, c := range flagCommunity {
			listener.V2Communities[c] = true
		}
	}

	if flagConfigPath != "" {
		targets, err := snmpmgr.LoadTargetsFromCUE(flagConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		for _, t := range targets {
			if t.UserName != "" {
				listener.V3Users[t.UserName] = t
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("shutting down")
		cancel()
	}()

	fmt.Printf("listening for traps on %s:%d\n", flagBindAddr, flagBindPort)
	err = listener.Serve(ctx, printTrap)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printTrap(msg *snmpmgr.TrapMessage, err error) {
	if err != nil {
		fmt.Println("decode error:", err)
		return
	}
	fmt.Println("----------------------------------------")
	fmt.Println(msg.String())
	fmt.Println(snmpmgr.FormatVarBindList(msg.PDU.VarBinds))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
