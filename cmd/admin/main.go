package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"scarify.ai/internal/cfgfile"
	"scarify.ai/internal/persistence/backup"
	persistlog "scarify.ai/internal/persistence/log"
	"scarify.ai/internal/scarify"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "players":
			playersCmd(os.Args[2:])
			return
		case "backup":
			backupCmd(os.Args[2:])
			return
		case "gamerule":
			gameruleCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "backups":
			backupsCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "check":
			checkCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <state|players|backup|gamerule|db|audit|backups|restore|check> [flags]")
	os.Exit(2)
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player filter (optional)")
	actor := fs.String("actor", "", "actor filter (optional)")
	_ = fs.Parse(args)

	files, err := persistlog.AuditFiles(persistlog.AuditDir(*dataDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	n := 0
	for _, f := range files {
		entries, err := persistlog.ReadAuditFile(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", filepath.Base(f), err)
		}
		for _, e := range entries {
			if *player != "" && e.Player != *player {
				continue
			}
			if *actor != "" && e.Actor != *actor {
				continue
			}
			fmt.Println(formatAudit(e))
			n++
		}
	}
	if n == 0 {
		fmt.Println("no matching audit entries")
	}
}

func formatAudit(e scarify.AuditEntry) string {
	s := fmt.Sprintf("%s %s %s %s", e.At.UTC().Format("2006-01-02T15:04:05Z"), e.Actor, e.Action, e.Player)
	if e.Value != "" {
		s += " " + e.Value
	}
	return s
}

func backupsCmd(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	paths, err := backup.List(filepath.Join(*dataDir, "backups"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, p := range paths {
		b, err := backup.Read(p)
		if err != nil {
			fmt.Printf("%s\tunreadable: %v\n", p, err)
			continue
		}
		fmt.Printf("%s\t%s\t%d bytes\n", p, b.Header.CreatedAt.Format("2006-01-02T15:04:05Z"), b.Header.Bytes)
	}
}

// restoreCmd overwrites the config file with a backup. Stop the server
// first; a running server rewrites the file on its next change.
func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	from := fs.String("backup", "latest", "backup path, or latest")
	cfgPath := fs.String("cfg", "./config/scarify.cfg", "scarify config file to overwrite")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*from)
	if path == "" || path == "latest" {
		p, err := backup.Latest(filepath.Join(*dataDir, "backups"))
		if errors.Is(err, backup.ErrNoBackups) {
			fmt.Fprintln(os.Stderr, "no backups found")
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest:", err)
			os.Exit(1)
		}
		path = p
	}
	b, err := backup.Read(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read backup:", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*cfgPath), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "mkdir:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*cfgPath, []byte(b.Text), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
	fmt.Printf("restored %s from %s\n", *cfgPath, path)
}

// checkCmd parses a config file the way the server does and reports what
// it would load.
func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	cfgPath := fs.String("cfg", "./config/scarify.cfg", "scarify config file")
	_ = fs.Parse(args)

	logger := log.New(os.Stderr, "[check] ", 0)
	if _, err := os.Stat(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "stat:", err)
		os.Exit(1)
	}
	reg := scarify.New(cfgfile.Load(*cfgPath, true, logger), "", logger)
	players := reg.Snapshot()
	fmt.Printf("%s: %d players\n", *cfgPath, len(players))
	for _, p := range players {
		if p.HasOverride {
			fmt.Printf("  %s distanceOverride=%s\n", p.Name, cfgfile.FormatDouble(p.DistanceOverride))
			continue
		}
		fmt.Printf("  %s\n", p.Name)
	}
}
