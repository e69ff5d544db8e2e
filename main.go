package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/limawan/cmd"
	"grimm.is/limawan/internal/brand"
	"grimm.is/limawan/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "setup":
		flags := flag.NewFlagSet("setup", flag.ExitOnError)
		configFile := flags.String("config", brand.ConfigFilePath(), "Configuration file")
		var args cmd.SetupArgs
		flags.StringVar(&args.VMName, "vm", "", "VM name (address resolved via the VM manager)")
		flags.StringVar(&args.VMAddress, "vm-address", "", "VM IPv4 address (skips resolution)")
		flags.IntVar(&args.InternalPort, "internal-port", 0, "Service port inside the VM")
		flags.IntVar(&args.ExternalPort, "external-port", 0, "Public port on the host")
		flags.StringVar(&args.Interface, "interface", "", "Host interface (default from config)")
		flags.StringVar(&args.Kind, "service", "generic", "Service kind: ssh, http, https, generic")
		verbose := flags.Bool("v", false, "Verbose logging")
		flags.Parse(os.Args[2:])
		setVerbose(*verbose)
		err = cmd.RunSetup(*configFile, args)

	case "teardown":
		flags := flag.NewFlagSet("teardown", flag.ExitOnError)
		configFile := flags.String("config", brand.ConfigFilePath(), "Configuration file")
		retain := flags.Bool("retain-backup", false, "Keep the pf.conf backup after teardown")
		force := flags.Bool("force", false, "Run the full sequence even if nothing seems deployed")
		verbose := flags.Bool("v", false, "Verbose logging")
		flags.Parse(os.Args[2:])
		setVerbose(*verbose)
		err = cmd.RunTeardown(*configFile, *retain, *force)

	case "status":
		flags := flag.NewFlagSet("status", flag.ExitOnError)
		configFile := flags.String("config", brand.ConfigFilePath(), "Configuration file")
		diff := flags.Bool("diff", false, "Show pf.conf changes since backup")
		ping := flags.Bool("ping", false, "Probe the forwarded VM address")
		flags.Parse(os.Args[2:])
		err = cmd.RunStatus(*configFile, cmd.StatusArgs{ShowDiff: *diff, Ping: *ping})

	case "check":
		flags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := flags.String("config", brand.ConfigFilePath(), "Configuration file")
		var args cmd.SetupArgs
		flags.StringVar(&args.VMAddress, "vm-address", "", "Candidate VM IPv4 address")
		flags.IntVar(&args.InternalPort, "internal-port", 0, "Candidate internal port")
		flags.IntVar(&args.ExternalPort, "external-port", 0, "Candidate external port")
		flags.StringVar(&args.Interface, "interface", "", "Candidate host interface")
		flags.StringVar(&args.Kind, "service", "generic", "Candidate service kind")
		verbose := flags.Bool("v", false, "Print the generated ruleset")
		flags.Parse(os.Args[2:])
		err = cmd.RunCheck(*configFile, args, *verbose)

	case "config":
		if len(os.Args) < 3 || os.Args[2] != "init" {
			printUsage()
			os.Exit(1)
		}
		flags := flag.NewFlagSet("config init", flag.ExitOnError)
		path := flags.String("path", brand.ConfigFilePath(), "Where to write the default config")
		flags.Parse(os.Args[3:])
		err = cmd.RunConfigInit(*path)

	case "version":
		fmt.Printf("%s %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setVerbose(v bool) {
	if v {
		logging.Default().SetLevel(logging.LevelDebug)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage: %s <command> [flags]

Commands:
  setup       Deploy a forwarding into the host firewall
  teardown    Remove the forwarding and restore pf.conf
  status      Show anchor status (read-only)
  check       Validate config and a candidate forwarding offline
  config init Write a default configuration file
  version     Print version

Run '%s <command> -h' for flags.
`, brand.Name, brand.Description, brand.BinaryName, brand.BinaryName)
}
