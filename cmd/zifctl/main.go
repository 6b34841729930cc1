// Command zifctl is the companion CLI to the zif repository-metadata
// engine: it resolves user queries against the installed-package database
// and every enabled remote repository.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/zifproj/zif/config"
	"github.com/zifproj/zif/lock"
	"github.com/zifproj/zif/monitor"
	"github.com/zifproj/zif/repos"
	"github.com/zifproj/zif/storearray"
	"github.com/zifproj/zif/storelocal"
)

// engine bundles the per-process singletons, constructed once here and
// threaded explicitly to every subcommand.
type engine struct {
	cfg   *config.Configuration
	locks *lock.Manager
	local *storelocal.Store
	repos *repos.Repos
}

type subcmd func(context.Context, *engine, []string) error

var subcmds = map[string]subcmd{
	"download":      cmdDownload,
	"getpackages":   cmdGetPackages,
	"getfiles":      cmdGetFiles,
	"resolve":       cmdResolve,
	"searchname":    cmdSearchName,
	"searchdetails": cmdSearchDetails,
	"searchfile":    cmdSearchFile,
	"searchgroup":   cmdSearchGroup,
	"whatprovides":  cmdWhatProvides,
	"getdepends":    cmdGetDepends,
	"repolist":      cmdRepoList,
	"getdetails":    cmdGetDetails,
	"clean":         cmdClean,
	"get-updates":   cmdGetUpdates,
}

func main() {
	var exit int
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()
	ctx, done := context.WithCancel(context.Background())
	defer done()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		<-ch
		done()
	}()

	fs := flag.NewFlagSet("zifctl", flag.ExitOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nSubcommands\n\n")
		for _, n := range []string{
			"download", "getpackages", "getfiles", "resolve", "searchname",
			"searchdetails", "searchfile", "searchgroup", "whatprovides",
			"getdepends", "repolist", "getdetails", "clean", "get-updates",
		} {
			fmt.Fprintln(out, "\t"+n)
		}
		fmt.Fprintln(out)
	}
	verbose := fs.Bool("verbose", false, "enable debug logging")
	profile := fs.String("profile", "", "write a CPU profile to the named file")
	configFile := fs.String("config", "/etc/zif/zif.conf", "main configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	l := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	zlog.Set(&l)

	if *profile != "" {
		f, err := os.Create(*profile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cmd, ok := subcmds[fs.Arg(0)]
	if !ok {
		fs.Usage()
		if n := fs.Arg(0); n != "" {
			fmt.Fprintf(os.Stderr, "\nunknown subcommand %q\n", n)
		}
		exit = 99
		return
	}
	if fs.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "each subcommand takes at most one argument")
		exit = 99
		return
	}

	eng, err := newEngine(ctx, *configFile)
	if err != nil {
		log.Print(err)
		exit = 1
		return
	}

	if err := cmd(ctx, eng, fs.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exit = 2
	}
}

func newEngine(ctx context.Context, configFile string) (*engine, error) {
	cfg := config.New()
	w := monitor.New(ctx)
	if _, err := os.Stat(configFile); err == nil {
		if err := cfg.SetFilename(configFile); err != nil {
			return nil, err
		}
		// An edited config file makes every derived value stale; the next
		// getter reparses, and the repo registry rebuilds.
		w.AddWatch(configFile)
		w.Listen(cfg.Reload)
	}
	pidfile, _ := cfg.GetString("pidfile")
	compat, _ := cfg.GetBool("lock_compat")
	locks := lock.NewManager(pidfile, compat)

	local := storelocal.New("/", w)
	return &engine{
		cfg:   cfg,
		locks: locks,
		local: local,
		repos: repos.New(cfg, local, locks, w),
	}, nil
}

// array builds the fan-out Array over every enabled remote store, with an
// error handler that reports the failing store's id and keeps going.
func (e *engine) array(ctx context.Context) (*storearray.Array, error) {
	stores, err := e.repos.GetStoresEnabled(ctx)
	if err != nil {
		return nil, err
	}
	a := &storearray.Array{
		Basearches: e.cfg.BasearchArray(),
		Handler: storearray.ErrorHandlerFunc(func(storeID string, err error) storearray.Decision {
			fmt.Fprintf(os.Stderr, "%v (store: %s)\n", err, storeID)
			return storearray.Continue
		}),
	}
	for _, s := range stores {
		a.Stores = append(a.Stores, s)
	}
	return a, nil
}
