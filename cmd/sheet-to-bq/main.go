package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/alioualarbi/sheet-to-bq/commands"
)

var cli = []commands.Command{
	&commands.RunCmd,
	&commands.ServeCmd,
	&commands.VersionCmd,
}

var options = commands.Options{
	Debug: false,
}

func main() {
	// Optional .env file - flag defaults pick the variables up.
	godotenv.Load()

	flag.BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if args[0] == "help" {
		help(args[1:])
		return
	}

	cmd := lookup(args[0])
	if cmd == nil {
		fmt.Printf("\nInvalid command '%s'\n\n", args[0])
		usage()
		os.Exit(1)
	}

	if err := cmd.FlagSet().Parse(args[1:]); err != nil {
		fmt.Printf("\nError parsing command line: %v\n\n", err)
		os.Exit(1)
	}

	if err := cmd.Execute(&options); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func lookup(name string) commands.Command {
	for _, cmd := range cli {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

func usage() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] <command> [options]\n", commands.APP)
	fmt.Println()
	fmt.Println("  Commands:")

	for _, cmd := range cli {
		fmt.Printf("    %-9s %s\n", cmd.Name(), cmd.Description())
	}

	fmt.Printf("    %-9s Displays the help information for a command\n", "help")
	fmt.Println()
}

func help(args []string) {
	if len(args) == 0 {
		usage()
		return
	}

	if cmd := lookup(args[0]); cmd != nil {
		cmd.Help()
		return
	}

	fmt.Printf("\nInvalid command '%s'\n\n", args[0])
	usage()
}
