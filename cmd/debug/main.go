package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/thatsimonsguy/grow-controller/db"
	"github.com/thatsimonsguy/grow-controller/internal/model"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, kind string
	var id uint
	var limit int
	var olderThan time.Duration
	flag.StringVar(&dbPath, "db", "data/grow.db", "Path to the SQLite history database")
	flag.StringVar(&command, "cmd", "", "Command to run: runs, syslog, zonelog, calibrations, prune")
	flag.StringVar(&kind, "kind", "water", "Zone kind for zonelog")
	flag.UintVar(&id, "id", 1, "Zone id for zonelog, arm id for calibrations")
	flag.IntVar(&limit, "n", 20, "Number of entries to show")
	flag.DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Age of entries removed by prune")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of grow-debug:")
		fmt.Println("  -db string\tPath to the SQLite history database (default 'data/grow.db')")
		fmt.Println("  -cmd string\tCommand to run: runs, syslog, zonelog, calibrations, prune")
		fmt.Println("  -kind string\tZone kind for zonelog (default 'water')")
		fmt.Println("  -id uint\tZone id for zonelog, arm id for calibrations (default 1)")
		fmt.Println("  -n int\tNumber of entries to show (default 20)")
		fmt.Println("  -older-than duration\tAge of entries removed by prune (default 2160h)")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}
	if id > 255 {
		fmt.Println("Error: id must fit in 0-255")
		os.Exit(1)
	}

	var err error
	switch command {
	case "runs":
		err = db.PrintWateringRunsCLI(os.Stdout, dbPath, limit)
	case "syslog":
		err = db.PrintSysLogCLI(os.Stdout, dbPath, limit)
	case "zonelog":
		var k model.Kind
		k, err = model.ParseKind(kind)
		if err == nil {
			err = db.PrintZoneLogCLI(os.Stdout, dbPath, k, uint8(id), limit)
		}
	case "calibrations":
		err = db.PrintCalibrationsCLI(os.Stdout, dbPath, uint8(id), limit)
	case "prune":
		var removed int64
		removed, err = db.PruneCLI(dbPath, olderThan)
		if err == nil {
			fmt.Printf("Removed %d entries\n", removed)
		}
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
}
