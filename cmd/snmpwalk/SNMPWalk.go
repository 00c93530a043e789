// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/coresnmp/snmpmgr"
	"github.com/spf13/cobra"
)

var (
	flagHost          string
	flagPort          int
	flagVersion       string
	flagUser          string
	flagCommunity     string
	flagContext       string
	flagAuthProtocol  string
	flagAuthPassword  string
	flagPrivProtocol  string
	flagPrivPassword  string
	flagBulk          bool
	flagTimeoutSecond int
	flagOID           string
)

var rootCmd = &cobra.Command{
	Use:     "snmpwalk",
	Short:   "Walk an SNMP agent's MIB tree",
	Example: "snmpwalk -H 192.168.0.1 -v v3 -u monitor -a sha1 -A authpass -x aes128 -X privpass -o 1.3.6.1.2.1.1",
	RunE:    runWalk,
}

func init() {
	rootCmd.Flags().StringVarP(&flagHost, "host", "H", "", "agent IP or hostname (required)")
	rootCmd.Flags().IntVarP(&flagPort, "port", "p", 161, "agent UDP port")
	rootCmd.Flags().StringVarP(&flagVersion, "version", "v", "v3", "SNMP version: v1, v2c, or v3")
	rootCmd.Flags().StringVarP(&flagUser, "user", "u", "", "SNMPv3 security name")
	rootCmd.Flags().StringVarP(&flagCommunity, "community", "c", "public", "v1/v2c community")
	rootCmd.Flags().StringVar(&flagContext, "context", "", "SNMPv3 context name")
	rootCmd.Flags().StringVarP(&flagAuthProtocol, "auth-protocol", "a", "", "SNMPv3 auth protocol: md5 or sha1")
	rootCmd.Flags().StringVarP(&flagAuthPassword, "auth-password", "A", "", "SNMPv3 auth password")
	rootCmd.Flags().StringVarP(&flagPrivProtocol, "priv-protocol", "x", "", "SNMPv3 priv protocol: des, 3des, aes128, aes192, aes256")
	rootCmd.Flags().StringVarP(&flagPrivPassword, "priv-password", "X", "", "SNMPv3 priv password")
	rootCmd.Flags().BoolVar(&flagBulk, "bulk", false, "call BulkWalk instead of Walk (Walk already uses GetBulk on v2c/v3; v1 always uses GetNext)")
	rootCmd.Flags().IntVar(&flagTimeoutSecond, "timeout", 60, "overall walk timeout in seconds")
	rootCmd.Flags().StringVarP(&flagOID, "oid", "o", "1.3.6.1.2.1", "base OID to walk")
	rootCmd.MarkFlagRequired("host")
}

func runWalk(cmd *cobra.Command, args []string) error {
	target, err := buildTarget()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flagTimeoutSecond)*time.Second)
	defer cancel()

	client, err := snmpmgr.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("dial %s: %w", flagHost, err)
	}
	defer client.Close()

	base, err := snmpmgr.ParseOid(flagOID)
	if err != nil {
		return fmt.Errorf("parse oid %q: %w", flagOID, err)
	}

	var results map[string]snmpmgr.Value
	if flagBulk {
		results, err = client.BulkWalk(ctx, base)
	} else {
		results, err = client.Walk(ctx, base)
	}
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}

	vbs := make(snmpmgr.VbList, 0, len(results))
	for oidStr, val := range results {
		oid, perr := snmpmgr.ParseOid(oidStr)
		if perr != nil {
			continue
		}
		vbs = append(vbs, snmpmgr.Vb{OID: oid, Value: val})
	}
	sort.Slice(vbs, func(i, j int) bool { return vbs[i].OID.Compare(vbs[j].OID) < 0 })
	fmt.Println(snmpmgr.FormatVarBindList(vbs))
	return nil
}

func buildTarget() (snmpmgr.TargetConfig, error) {
	target := snmpmgr.TargetConfig{
		Address:      flagHost,
		Port:         flagPort,
		Community:    flagCommunity,
		UserName:     flagUser,
		AuthPassword: flagAuthPassword,
		PrivPassword: flagPrivPassword,
		ContextName:  flagContext,
		RetryCount:   3,
		TimeoutMS:    1500,
	}

	switch flagVersion {
	case "v1":
		target.Version = snmpmgr.Version1
	case "v2c":
		target.Version = snmpmgr.Version2c
	case "v3":
		target.Version = snmpmgr.Version3
	default:
		return target, fmt.Errorf("unknown version %q", flagVersion)
	}

	if target.Version == snmpmgr.Version3 {
		switch flagAuthProtocol {
		case "":
			target.AuthProtocol = snmpmgr.AuthNone
		case "md5":
			target.AuthProtocol = snmpmgr.AuthMD5
		case "sha1":
			target.AuthProtocol = snmpmgr.AuthSHA1
		default:
			return target, fmt.Errorf("unsupported auth protocol %q", flagAuthProtocol)
		}

		switch flagPrivProtocol {
		case "":
			target.PrivProtocol = snmpmgr.PrivNone
		case "des":
			target.PrivProtocol = snmpmgr.PrivDES
		case "3des":
			target.PrivProtocol = snmpmgr.Priv3DES
		case "aes128":
			target.PrivProtocol = snmpmgr.PrivAES128
		case "aes192":
			target.PrivProtocol = snmpmgr.PrivAES192
		case "aes256":
			target.PrivProtocol = snmpmgr.PrivAES256
		default:
			return target, fmt.Errorf("unsupported priv protocol %q", flagPrivProtocol)
		}

		switch {
		case target.PrivProtocol != snmpmgr.PrivNone:
			target.SecurityLevel = snmpmgr.AuthPriv
		case target.AuthProtocol != snmpmgr.AuthNone:
			target.SecurityLevel = snmpmgr.AuthNoPriv
		default:
			target.SecurityLevel = snmpmgr.NoAuthNoPriv
		}
	}

	return target, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
