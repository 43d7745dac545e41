// Command backupctl runs one backup engine operation and exits. The first
// argument selects the action; configuration flags are shared with backupd.
//
// Usage:
//
//	backupctl backup  [-company N] [-actor N]
//	backupctl restore -backup PATH [-company N] [-actor N] [-no-merge]
//	backupctl import  -file PATH [-actor N]
//	backupctl export  [-company N] [-actor N]
//	backupctl list    [-company N] [-limit N]
//	backupctl sweep   [-company N]
//	backupctl push
//	backupctl status
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mkalvis/stockvault/internal/app"
	"github.com/mkalvis/stockvault/internal/buildinfo"
	"github.com/mkalvis/stockvault/internal/config"
	"github.com/mkalvis/stockvault/internal/flagx"
)

type actionFlags struct {
	company *int64
	actor   *int64
	backup  string
	file    string
	limit   int
	noMerge bool
}

func parseActionFlags(args []string) (*actionFlags, error) {
	filtered := flagx.FilterArgs(args,
		[]string{"-company", "-actor", "-backup", "-file", "-limit", "-no-merge"})

	fs := flag.NewFlagSet("backupctl", flag.ContinueOnError)
	company := fs.Int64("company", 0, "company id (omit for the admin partition)")
	actor := fs.Int64("actor", 0, "user id recorded as the operation's initiator")
	backup := fs.String("backup", "", "stored backup path (date/file_name)")
	file := fs.String("file", "", "local snapshot file to import")
	limit := fs.Int("limit", 0, "max backups to list (0 for all)")
	noMerge := fs.Bool("no-merge", false, "request replace semantics on restore")

	if err := fs.Parse(filtered); err != nil {
		return nil, err
	}

	af := &actionFlags{backup: *backup, file: *file, limit: *limit, noMerge: *noMerge}
	if *company != 0 {
		af.company = company
	}
	if *actor != 0 {
		af.actor = actor
	}
	return af, nil
}

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	if len(os.Args) < 2 {
		log.Fatalf("usage: backupctl <backup|restore|import|export|list|sweep|push|status> [flags]")
	}
	action := os.Args[1]

	af, err := parseActionFlags(os.Args[2:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if err := run(ctx, a, action, af); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, a *app.App, action string, af *actionFlags) error {
	switch action {

	case "backup":
		res, err := a.Backup(ctx, af.company, af.actor)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("backup failed: %s", res.Message)
		}
		fmt.Printf("uploaded %s (%d bytes)\n", res.Path, res.SizeBytes)
		return nil

	case "restore":
		if af.backup == "" {
			return fmt.Errorf("restore requires -backup")
		}
		res := a.Restore(ctx, af.company, af.backup, af.actor, !af.noMerge)
		if !res.Success {
			return fmt.Errorf("restore failed: %s", res.Message)
		}
		fmt.Println(res.Message)
		return nil

	case "import":
		if af.file == "" {
			return fmt.Errorf("import requires -file")
		}
		res, err := a.RestoreFile(ctx, af.file, af.actor, !af.noMerge)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("import failed: %s", res.Message)
		}
		fmt.Println(res.Message)
		return nil

	case "export":
		path, err := a.Export(ctx, af.company, af.actor)
		if err != nil {
			return err
		}
		fmt.Printf("exported %s\n", path)
		return nil

	case "list":
		backups, err := a.List(ctx, af.company, af.limit)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("no backups found")
			return nil
		}
		for _, b := range backups {
			compressed := ""
			if b.Compressed {
				compressed = " (compressed)"
			}
			fmt.Printf("%s  %s %s%s\n", b.FileName, b.BackupDate, b.BackupTime, compressed)
		}
		return nil

	case "sweep":
		deleted, err := a.Sweep(ctx, af.company)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d expired backup(s)\n", deleted)
		return nil

	case "push":
		if err := a.PushPending(ctx); err != nil {
			return err
		}
		fmt.Println("pending records pushed")
		return nil

	case "status":
		st := a.Status()
		fmt.Printf("session:  %s\n", st.SessionID)
		fmt.Printf("online:   %v\n", st.IsOnline)
		fmt.Printf("pending:  %d\n", st.PendingRecords)
		fmt.Printf("last sync: %s (%s)\n", st.LastSyncTime.Format("2006-01-02 15:04:05"), st.LastSyncStatus)
		return nil

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
